package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/osei-dev/pastq-api/internal/dto"
	"github.com/osei-dev/pastq-api/internal/models"
	appErrors "github.com/osei-dev/pastq-api/pkg/errors"
	"github.com/osei-dev/pastq-api/pkg/response"
)

type pastQuestionService interface {
	Upload(ctx context.Context, req dto.CreatePastQuestionRequest, fileName string, fileSize int64, file io.Reader, actor *models.JWTClaims) (*models.PastQuestion, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.PastQuestion, error)
	Approve(ctx context.Context, id string, reviewer *models.JWTClaims) (*models.PastQuestion, error)
	Reject(ctx context.Context, id string, req dto.RejectPastQuestionRequest, reviewer *models.JWTClaims) (*models.PastQuestion, error)
	Download(ctx context.Context, id, ip, userAgent string, actor *models.JWTClaims) (io.ReadCloser, *models.PastQuestion, error)
	List(ctx context.Context, query dto.PastQuestionQuery, actor *models.JWTClaims) ([]models.PastQuestion, *models.Pagination, error)
	ListPending(ctx context.Context, query dto.PastQuestionQuery, actor *models.JWTClaims) ([]models.PastQuestion, *models.Pagination, error)
	ListMine(ctx context.Context, query dto.PastQuestionQuery, actor *models.JWTClaims) ([]models.PastQuestion, *models.Pagination, error)
	ListPopular(ctx context.Context, limit int) ([]models.PastQuestion, error)
	ListMyDownloads(ctx context.Context, page, pageSize int, actor *models.JWTClaims) ([]models.DownloadHistory, *models.Pagination, error)
	ListSubmissionDownloads(ctx context.Context, submissionID string, page, pageSize int, actor *models.JWTClaims) ([]models.DownloadHistory, *models.Pagination, error)
}

type reviewMetrics interface {
	RecordUpload()
	RecordView()
	RecordDownload()
	RecordReview(outcome string)
}

// PastQuestionHandler manages submission HTTP endpoints.
type PastQuestionHandler struct {
	service pastQuestionService
	metrics reviewMetrics
}

// NewPastQuestionHandler constructs the handler.
func NewPastQuestionHandler(service pastQuestionService, metrics reviewMetrics) *PastQuestionHandler {
	return &PastQuestionHandler{service: service, metrics: metrics}
}

// Upload godoc
// @Summary Upload a past question paper
// @Tags PastQuestions
// @Accept multipart/form-data
// @Produce json
// @Param course_id formData string true "Course ID"
// @Param year formData int true "Exam year"
// @Param semester formData string true "Semester"
// @Param exam_type formData string true "Exam type"
// @Param lecturer formData string false "Lecturer"
// @Param description formData string false "Description"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Router /past-questions [post]
func (h *PastQuestionHandler) Upload(c *gin.Context) {
	var req dto.CreatePastQuestionRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid upload payload"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	pq, err := h.service.Upload(c.Request.Context(), req, fileHeader.Filename, fileHeader.Size, src, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordUpload()
	}
	response.JSON(c, http.StatusCreated, dto.NewPastQuestionResponse(*pq), nil)
}

// Get godoc
// @Summary Get a past question with its derived title
// @Tags PastQuestions
// @Produce json
// @Param id path string true "Past question ID"
// @Success 200 {object} response.Envelope
// @Router /past-questions/{id} [get]
func (h *PastQuestionHandler) Get(c *gin.Context) {
	pq, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordView()
	}
	response.JSON(c, http.StatusOK, dto.NewPastQuestionResponse(*pq), nil)
}

// Approve godoc
// @Summary Approve a pending or rejected submission
// @Tags PastQuestions
// @Produce json
// @Param id path string true "Past question ID"
// @Success 200 {object} response.Envelope
// @Router /past-questions/{id}/approve [post]
func (h *PastQuestionHandler) Approve(c *gin.Context) {
	pq, err := h.service.Approve(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordReview("approved")
	}
	response.JSON(c, http.StatusOK, dto.NewPastQuestionResponse(*pq), nil)
}

// Reject godoc
// @Summary Reject a submission with a reason
// @Tags PastQuestions
// @Produce json
// @Param id path string true "Past question ID"
// @Param payload body dto.RejectPastQuestionRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /past-questions/{id}/reject [post]
func (h *PastQuestionHandler) Reject(c *gin.Context) {
	var req dto.RejectPastQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.ErrMissingReason)
		return
	}
	pq, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordReview("rejected")
	}
	response.JSON(c, http.StatusOK, dto.NewPastQuestionResponse(*pq), nil)
}

// Download godoc
// @Summary Download an approved past question file
// @Tags PastQuestions
// @Produce octet-stream
// @Param id path string true "Past question ID"
// @Success 200 {file} binary
// @Router /past-questions/{id}/download [get]
func (h *PastQuestionHandler) Download(c *gin.Context) {
	file, pq, err := h.service.Download(c.Request.Context(), c.Param("id"), c.ClientIP(), c.Request.UserAgent(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	if h.metrics != nil {
		h.metrics.RecordDownload()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", pq.FileName))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, pq.FileSize, contentTypeFor(pq.FileType), file, nil)
}

// List godoc
// @Summary Search approved past questions
// @Tags PastQuestions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /past-questions [get]
func (h *PastQuestionHandler) List(c *gin.Context) {
	pqs, pagination, err := h.service.List(c.Request.Context(), parsePastQuestionQuery(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewPastQuestionResponses(pqs), pagination)
}

// ListPending godoc
// @Summary List the moderation queue
// @Tags PastQuestions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /past-questions/pending [get]
func (h *PastQuestionHandler) ListPending(c *gin.Context) {
	pqs, pagination, err := h.service.ListPending(c.Request.Context(), parsePastQuestionQuery(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewPastQuestionResponses(pqs), pagination)
}

// ListMine godoc
// @Summary List the caller's own submissions
// @Tags PastQuestions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /past-questions/mine [get]
func (h *PastQuestionHandler) ListMine(c *gin.Context) {
	pqs, pagination, err := h.service.ListMine(c.Request.Context(), parsePastQuestionQuery(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewPastQuestionResponses(pqs), pagination)
}

// ListPopular godoc
// @Summary List the most downloaded papers
// @Tags PastQuestions
// @Produce json
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /past-questions/popular [get]
func (h *PastQuestionHandler) ListPopular(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	pqs, err := h.service.ListPopular(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewPastQuestionResponses(pqs), nil)
}

// ListMyDownloads godoc
// @Summary List the caller's download history
// @Tags PastQuestions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /past-questions/downloads [get]
func (h *PastQuestionHandler) ListMyDownloads(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	history, pagination, err := h.service.ListMyDownloads(c.Request.Context(), page, pageSize, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, pagination)
}

// History godoc
// @Summary List a submission's download history
// @Tags PastQuestions
// @Produce json
// @Param id path string true "Past question ID"
// @Success 200 {object} response.Envelope
// @Router /past-questions/{id}/history [get]
func (h *PastQuestionHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	history, pagination, err := h.service.ListSubmissionDownloads(c.Request.Context(), c.Param("id"), page, pageSize, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, pagination)
}

func parsePastQuestionQuery(c *gin.Context) dto.PastQuestionQuery {
	query := dto.PastQuestionQuery{
		CourseID:   strings.TrimSpace(c.Query("course_id")),
		CourseCode: strings.TrimSpace(c.Query("course_code")),
		Search:     strings.TrimSpace(c.Query("search")),
		SortBy:     strings.TrimSpace(c.Query("sort_by")),
		SortOrder:  strings.TrimSpace(c.Query("sort_order")),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.SubmissionStatus(strings.ToLower(raw))
		query.Status = &status
	}
	if raw := c.Query("year"); raw != "" {
		if year, err := strconv.Atoi(raw); err == nil {
			query.Year = &year
		}
	}
	if raw := c.Query("semester"); raw != "" {
		semester := models.Semester(strings.ToLower(raw))
		query.Semester = &semester
	}
	if raw := c.Query("exam_type"); raw != "" {
		examType := models.ExamType(strings.ToLower(raw))
		query.ExamType = &examType
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return query
}

func contentTypeFor(fileType string) string {
	switch strings.ToLower(fileType) {
	case "pdf":
		return "application/pdf"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
