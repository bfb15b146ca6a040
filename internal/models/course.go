package models

import "time"

// Course represents a catalog entry submissions are filed under.
type Course struct {
	ID          string     `db:"id" json:"id"`
	Code        string     `db:"code" json:"code"`
	Title       string     `db:"title" json:"title"`
	Faculty     string     `db:"faculty" json:"faculty"`
	Department  string     `db:"department" json:"department"`
	Level       string     `db:"level" json:"level"`
	CreditHours int        `db:"credit_hours" json:"credit_hours"`
	Description string     `db:"description" json:"description"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`

	// PastQuestionCount counts papers ever approved under this course.
	// The ledger bumps it in the approval transaction.
	PastQuestionCount int `db:"past_question_count" json:"past_question_count"`
}

// CourseFilter captures filtering criteria for course listings.
type CourseFilter struct {
	Faculty    string
	Department string
	Level      string
	IsActive   *bool
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
