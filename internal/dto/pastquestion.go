package dto

import "github.com/osei-dev/pastq-api/internal/models"

// CreatePastQuestionRequest carries the metadata fields of a multipart upload.
// The file itself arrives as the "file" form part.
type CreatePastQuestionRequest struct {
	CourseID     string          `form:"course_id" validate:"required"`
	Year         int             `form:"year" validate:"required"`
	Semester     models.Semester `form:"semester" validate:"required,oneof=first second third"`
	ExamType     models.ExamType `form:"exam_type" validate:"required,oneof=midterm final quiz assignment test other"`
	Title        string          `form:"title"`
	Lecturer     string          `form:"lecturer"`
	Description  string          `form:"description"`
	HasSolutions bool            `form:"has_solutions"`
	IsScanned    bool            `form:"is_scanned"`
}

// RejectPastQuestionRequest captures the reviewer's rejection reason.
type RejectPastQuestionRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// PastQuestionQuery mirrors supported listing filters.
type PastQuestionQuery struct {
	CourseID   string                   `form:"course_id"`
	CourseCode string                   `form:"course_code"`
	Status     *models.SubmissionStatus `form:"status"`
	Year       *int                     `form:"year"`
	Semester   *models.Semester         `form:"semester"`
	ExamType   *models.ExamType         `form:"exam_type"`
	Search     string                   `form:"search"`
	Page       int                      `form:"page"`
	PageSize   int                      `form:"page_size"`
	SortBy     string                   `form:"sort_by"`
	SortOrder  string                   `form:"sort_order"`
}

// PastQuestionResponse is the serialized submission with its display title.
type PastQuestionResponse struct {
	models.PastQuestion
	Title string `json:"title"`
}

// NewPastQuestionResponse wraps a model with its stored or derived title.
func NewPastQuestionResponse(pq models.PastQuestion) PastQuestionResponse {
	return PastQuestionResponse{PastQuestion: pq, Title: pq.DisplayTitle()}
}

// NewPastQuestionResponses maps a slice of models.
func NewPastQuestionResponses(pqs []models.PastQuestion) []PastQuestionResponse {
	out := make([]PastQuestionResponse, 0, len(pqs))
	for _, pq := range pqs {
		out = append(out, NewPastQuestionResponse(pq))
	}
	return out
}
