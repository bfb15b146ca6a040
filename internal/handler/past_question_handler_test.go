package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/osei-dev/pastq-api/internal/dto"
	"github.com/osei-dev/pastq-api/internal/middleware"
	"github.com/osei-dev/pastq-api/internal/models"
	appErrors "github.com/osei-dev/pastq-api/pkg/errors"
)

type pastQuestionServiceStub struct {
	uploaded   *models.PastQuestion
	rejectedID string
	reason     string
	fileBody   string
	downloads  int
}

func (s *pastQuestionServiceStub) Upload(_ context.Context, req dto.CreatePastQuestionRequest, fileName string, fileSize int64, file io.Reader, actor *models.JWTClaims) (*models.PastQuestion, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	s.uploaded = &models.PastQuestion{
		ID:         "pq-1",
		CourseID:   req.CourseID,
		CourseCode: "CS101",
		Year:       req.Year,
		Semester:   req.Semester,
		ExamType:   req.ExamType,
		Title:      strings.TrimSpace(req.Title),
		FileName:   fileName,
		FileSize:   int64(len(data)),
		FileType:   "pdf",
		Status:     models.StatusPending,
		UploadedBy: actor.UserID,
	}
	_ = fileSize
	return s.uploaded, nil
}

func (s *pastQuestionServiceStub) Get(_ context.Context, id string, _ *models.JWTClaims) (*models.PastQuestion, error) {
	if id != "pq-1" {
		return nil, appErrors.ErrNotFound
	}
	return &models.PastQuestion{ID: "pq-1", CourseCode: "CS101", Year: 2023, ExamType: models.ExamTypeMidterm, Status: models.StatusApproved}, nil
}

func (s *pastQuestionServiceStub) Approve(_ context.Context, id string, reviewer *models.JWTClaims) (*models.PastQuestion, error) {
	if reviewer == nil || !reviewer.CanModerate() {
		return nil, appErrors.ErrForbidden
	}
	return &models.PastQuestion{ID: id, Status: models.StatusApproved}, nil
}

func (s *pastQuestionServiceStub) Reject(_ context.Context, id string, req dto.RejectPastQuestionRequest, reviewer *models.JWTClaims) (*models.PastQuestion, error) {
	if reviewer == nil || !reviewer.CanModerate() {
		return nil, appErrors.ErrForbidden
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.ErrMissingReason
	}
	s.rejectedID = id
	s.reason = req.Reason
	return &models.PastQuestion{ID: id, Status: models.StatusRejected, RejectionReason: req.Reason}, nil
}

func (s *pastQuestionServiceStub) Download(_ context.Context, id, _, _ string, actor *models.JWTClaims) (io.ReadCloser, *models.PastQuestion, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if id != "pq-1" {
		return nil, nil, appErrors.ErrNotFound
	}
	s.downloads++
	pq := &models.PastQuestion{
		ID:       id,
		FileName: "midterm.pdf",
		FileSize: int64(len(s.fileBody)),
		FileType: "pdf",
		Status:   models.StatusApproved,
	}
	return io.NopCloser(strings.NewReader(s.fileBody)), pq, nil
}

func (s *pastQuestionServiceStub) List(_ context.Context, query dto.PastQuestionQuery, _ *models.JWTClaims) ([]models.PastQuestion, *models.Pagination, error) {
	return []models.PastQuestion{}, &models.Pagination{Page: query.Page, PageSize: query.PageSize}, nil
}

func (s *pastQuestionServiceStub) ListPending(_ context.Context, _ dto.PastQuestionQuery, actor *models.JWTClaims) ([]models.PastQuestion, *models.Pagination, error) {
	if actor == nil || !actor.CanModerate() {
		return nil, nil, appErrors.ErrForbidden
	}
	return []models.PastQuestion{{ID: "pq-1", Status: models.StatusPending}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (s *pastQuestionServiceStub) ListMine(_ context.Context, _ dto.PastQuestionQuery, actor *models.JWTClaims) ([]models.PastQuestion, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	return []models.PastQuestion{}, &models.Pagination{}, nil
}

func (s *pastQuestionServiceStub) ListPopular(_ context.Context, _ int) ([]models.PastQuestion, error) {
	return []models.PastQuestion{{ID: "pq-1", DownloadCount: 42}}, nil
}

func (s *pastQuestionServiceStub) ListMyDownloads(_ context.Context, _, _ int, actor *models.JWTClaims) ([]models.DownloadHistory, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	return []models.DownloadHistory{}, &models.Pagination{}, nil
}

func (s *pastQuestionServiceStub) ListSubmissionDownloads(_ context.Context, _ string, _, _ int, actor *models.JWTClaims) ([]models.DownloadHistory, *models.Pagination, error) {
	if actor == nil || !actor.CanModerate() {
		return nil, nil, appErrors.ErrForbidden
	}
	return []models.DownloadHistory{}, &models.Pagination{}, nil
}

func buildPastQuestionRouter(stub *pastQuestionServiceStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		switch c.GetHeader("X-Test-Actor") {
		case "student":
			c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Active: true})
		case "moderator":
			c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "mod-1", IsModerator: true, Active: true})
		}
		c.Next()
	})

	h := NewPastQuestionHandler(stub, nil)
	router.POST("/past-questions", h.Upload)
	router.GET("/past-questions/:id", h.Get)
	router.POST("/past-questions/:id/approve", h.Approve)
	router.POST("/past-questions/:id/reject", h.Reject)
	router.GET("/past-questions/:id/download", h.Download)
	router.GET("/past-questions", h.List)
	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func multipartUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("course_id", "course-1"))
	require.NoError(t, writer.WriteField("year", "2023"))
	require.NoError(t, writer.WriteField("semester", "first"))
	require.NoError(t, writer.WriteField("exam_type", "midterm"))
	part, err := writer.CreateFormFile("file", "midterm.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 exam body"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadEndpointCreatesSubmission(t *testing.T) {
	stub := &pastQuestionServiceStub{}
	router := buildPastQuestionRouter(stub)

	body, contentType := multipartUpload(t)
	req, _ := http.NewRequest(http.MethodPost, "/past-questions", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Test-Actor", "student")

	resp := performRequest(router, req)
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Contains(t, resp.Body.String(), `"status":"pending"`)
	require.Contains(t, resp.Body.String(), `"title":"CS101 Midterm 2023"`)
	require.NotNil(t, stub.uploaded)
	require.Equal(t, "midterm.pdf", stub.uploaded.FileName)
}

func TestUploadEndpointAcceptsTitleField(t *testing.T) {
	stub := &pastQuestionServiceStub{}
	router := buildPastQuestionRouter(stub)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("course_id", "course-1"))
	require.NoError(t, writer.WriteField("year", "2023"))
	require.NoError(t, writer.WriteField("semester", "first"))
	require.NoError(t, writer.WriteField("exam_type", "midterm"))
	require.NoError(t, writer.WriteField("title", "CS101 Revision Set"))
	part, err := writer.CreateFormFile("file", "midterm.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 exam body"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, _ := http.NewRequest(http.MethodPost, "/past-questions", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Test-Actor", "student")

	resp := performRequest(router, req)
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Contains(t, resp.Body.String(), `"title":"CS101 Revision Set"`)
	require.Equal(t, "CS101 Revision Set", stub.uploaded.Title)
}

func TestUploadEndpointRequiresFile(t *testing.T) {
	router := buildPastQuestionRouter(&pastQuestionServiceStub{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("course_id", "course-1"))
	require.NoError(t, writer.WriteField("year", "2023"))
	require.NoError(t, writer.WriteField("semester", "first"))
	require.NoError(t, writer.WriteField("exam_type", "midterm"))
	require.NoError(t, writer.Close())

	req, _ := http.NewRequest(http.MethodPost, "/past-questions", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Test-Actor", "student")

	resp := performRequest(router, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "file is required")
}

func TestRejectEndpointRequiresReason(t *testing.T) {
	stub := &pastQuestionServiceStub{}
	router := buildPastQuestionRouter(stub)

	req, _ := http.NewRequest(http.MethodPost, "/past-questions/pq-1/reject", strings.NewReader(`{"reason":""}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Actor", "moderator")

	resp := performRequest(router, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "MISSING_REASON")

	req, _ = http.NewRequest(http.MethodPost, "/past-questions/pq-1/reject", strings.NewReader(`{"reason":"blurry scan"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Actor", "moderator")

	resp = performRequest(router, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "blurry scan", stub.reason)
}

func TestApproveEndpointForbiddenForStudents(t *testing.T) {
	router := buildPastQuestionRouter(&pastQuestionServiceStub{})

	req, _ := http.NewRequest(http.MethodPost, "/past-questions/pq-1/approve", nil)
	req.Header.Set("X-Test-Actor", "student")

	resp := performRequest(router, req)
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestDownloadEndpointStreamsAttachment(t *testing.T) {
	stub := &pastQuestionServiceStub{fileBody: "%PDF-1.4 exam body"}
	router := buildPastQuestionRouter(stub)

	req, _ := http.NewRequest(http.MethodGet, "/past-questions/pq-1/download", nil)
	req.Header.Set("X-Test-Actor", "student")

	resp := performRequest(router, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, `attachment; filename="midterm.pdf"`, resp.Header().Get("Content-Disposition"))
	require.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	require.Equal(t, stub.fileBody, resp.Body.String())
	require.Equal(t, 1, stub.downloads)
}

func TestDownloadEndpointRequiresAuth(t *testing.T) {
	router := buildPastQuestionRouter(&pastQuestionServiceStub{})

	req, _ := http.NewRequest(http.MethodGet, "/past-questions/pq-1/download", nil)
	resp := performRequest(router, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}
