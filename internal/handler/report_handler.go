package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/osei-dev/pastq-api/internal/dto"
	"github.com/osei-dev/pastq-api/internal/models"
	appErrors "github.com/osei-dev/pastq-api/pkg/errors"
	"github.com/osei-dev/pastq-api/pkg/response"
)

type reportService interface {
	Generate(ctx context.Context, req dto.GenerateReportRequest, actor *models.JWTClaims) (*dto.ReportResponse, error)
	Fetch(token string) (io.ReadCloser, string, error)
}

// ReportHandler serves staff export endpoints.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(service reportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Generate godoc
// @Summary Generate a CSV or PDF export
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.GenerateReportRequest true "Report request"
// @Success 201 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Generate(c *gin.Context) {
	var req dto.GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid report payload"))
		return
	}
	report, err := h.service.Generate(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, report, nil)
}

// Download godoc
// @Summary Download a generated report via its signed token
// @Tags Reports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /reports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, fileName, err := h.service.Fetch(token)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token"))
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", fileName))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, -1, reportContentType(fileName), file, nil)
}

func reportContentType(fileName string) string {
	switch {
	case strings.HasSuffix(fileName, ".csv"):
		return "text/csv"
	case strings.HasSuffix(fileName, ".pdf"):
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
