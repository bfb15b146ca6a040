package models

import (
	"fmt"
	"strings"
	"time"
)

// SubmissionStatus tracks the review lifecycle of a past question.
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved"
	StatusRejected SubmissionStatus = "rejected"
)

// Semester identifies the academic semester a paper was written in.
type Semester string

const (
	SemesterFirst  Semester = "first"
	SemesterSecond Semester = "second"
	SemesterThird  Semester = "third"
)

// Valid reports whether the semester is one of the accepted values.
func (s Semester) Valid() bool {
	switch s {
	case SemesterFirst, SemesterSecond, SemesterThird:
		return true
	}
	return false
}

// ExamType identifies the kind of assessment.
type ExamType string

const (
	ExamTypeMidterm    ExamType = "midterm"
	ExamTypeFinal      ExamType = "final"
	ExamTypeQuiz       ExamType = "quiz"
	ExamTypeAssignment ExamType = "assignment"
	ExamTypeTest       ExamType = "test"
	ExamTypeOther      ExamType = "other"
)

// Valid reports whether the exam type is one of the accepted values.
func (e ExamType) Valid() bool {
	switch e {
	case ExamTypeMidterm, ExamTypeFinal, ExamTypeQuiz, ExamTypeAssignment, ExamTypeTest, ExamTypeOther:
		return true
	}
	return false
}

// PastQuestion represents an uploaded exam paper and its review state.
type PastQuestion struct {
	ID              string           `db:"id" json:"id"`
	CourseID        string           `db:"course_id" json:"course_id"`
	UploadedBy      string           `db:"uploaded_by" json:"uploaded_by"`
	Year            int              `db:"year" json:"year"`
	Semester        Semester         `db:"semester" json:"semester"`
	ExamType        ExamType         `db:"exam_type" json:"exam_type"`
	Title           string           `db:"title" json:"-"`
	Lecturer        string           `db:"lecturer" json:"lecturer"`
	Description     string           `db:"description" json:"description"`
	HasSolutions    bool             `db:"has_solutions" json:"has_solutions"`
	IsScanned       bool             `db:"is_scanned" json:"is_scanned"`
	QualityRating   float64          `db:"quality_rating" json:"quality_rating"`
	FileName        string           `db:"file_name" json:"file_name"`
	FilePath        string           `db:"file_path" json:"-"`
	FileSize        int64            `db:"file_size" json:"file_size"`
	FileType        string           `db:"file_type" json:"file_type"`
	Status          SubmissionStatus `db:"status" json:"status"`
	RejectionReason string           `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewedBy      *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ViewCount       int              `db:"view_count" json:"view_count"`
	DownloadCount   int              `db:"download_count" json:"download_count"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`

	// CourseCode is joined in by listing queries for display titles.
	CourseCode string `db:"course_code" json:"course_code,omitempty"`
}

// DisplayTitle returns the stored title, or derives one from the course code,
// exam type and year when the uploader left it blank.
func (p *PastQuestion) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	examType := string(p.ExamType)
	if examType != "" {
		examType = strings.ToUpper(examType[:1]) + examType[1:]
	}
	return fmt.Sprintf("%s %s %d", p.CourseCode, examType, p.Year)
}

// PastQuestionFilter captures search criteria for submission listings.
type PastQuestionFilter struct {
	CourseID   string
	CourseCode string
	UploadedBy string
	Status     *SubmissionStatus
	Year       *int
	Semester   *Semester
	ExamType   *ExamType
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// DownloadHistory is an append-only record of a completed download.
type DownloadHistory struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	PastQuestionID string    `db:"past_question_id" json:"past_question_id"`
	IPAddress      string    `db:"ip_address" json:"ip_address"`
	UserAgent      string    `db:"user_agent" json:"user_agent"`
	DownloadedAt   time.Time `db:"downloaded_at" json:"downloaded_at"`
}

// DownloadHistoryFilter captures criteria for history listings.
type DownloadHistoryFilter struct {
	UserID         string
	PastQuestionID string
	From           *time.Time
	To             *time.Time
	Page           int
	PageSize       int
}
