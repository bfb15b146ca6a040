package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/osei-dev/pastq-api/internal/models"
	appErrors "github.com/osei-dev/pastq-api/pkg/errors"
)

func newPastQuestionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func pastQuestionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "course_id", "uploaded_by", "year", "semester", "exam_type",
		"title", "lecturer", "description", "has_solutions", "is_scanned", "quality_rating",
		"file_name", "file_path", "file_size", "file_type",
		"status", "rejection_reason", "reviewed_by", "reviewed_at", "view_count", "download_count",
		"created_at", "updated_at", "course_code",
	})
}

func TestPastQuestionRepositoryCreateSetsDefaults(t *testing.T) {
	db, mock, cleanup := newPastQuestionRepoMock(t)
	defer cleanup()

	repo := NewPastQuestionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO past_questions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	pq := &models.PastQuestion{
		CourseID:   "course-1",
		UploadedBy: "user-1",
		Year:       2024,
		Semester:   models.SemesterFirst,
		ExamType:   models.ExamTypeFinal,
		FileName:   "cs101_final_2024.pdf",
		FilePath:   "pastquestions/cs101_final_2024.pdf",
		FileSize:   2048,
		FileType:   "pdf",
	}
	require.NoError(t, repo.Create(context.Background(), pq))
	require.NotEmpty(t, pq.ID)
	require.Equal(t, models.StatusPending, pq.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPastQuestionRepositoryCreateDuplicateFiling(t *testing.T) {
	db, mock, cleanup := newPastQuestionRepoMock(t)
	defer cleanup()

	repo := NewPastQuestionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO past_questions")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_past_questions_filing"})

	err := repo.Create(context.Background(), &models.PastQuestion{
		CourseID:   "course-1",
		UploadedBy: "user-1",
		Year:       2024,
		Semester:   models.SemesterFirst,
		ExamType:   models.ExamTypeFinal,
		FileName:   "cs101_final_2024.pdf",
	})
	require.ErrorIs(t, err, appErrors.ErrDuplicateSubmission)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPastQuestionRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newPastQuestionRepoMock(t)
	defer cleanup()

	repo := NewPastQuestionRepository(db)
	now := time.Now()
	rows := pastQuestionRows().AddRow(
		"pq-1", "course-1", "user-1", 2023, "second", "midterm",
		"", "Dr. Mensah", "", true, false, 0.0,
		"cs101_midterm_2023.pdf", "pastquestions/cs101_midterm_2023.pdf", int64(1024), "pdf",
		"approved", "", "mod-1", now, 5, 2,
		now, now, "CS101",
	)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pq.id, pq.course_id")).
		WithArgs("pq-1").
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), "pq-1")
	require.NoError(t, err)
	require.Equal(t, "pq-1", found.ID)
	require.Equal(t, "CS101", found.CourseCode)
	require.Equal(t, "CS101 Midterm 2023", found.DisplayTitle())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPastQuestionRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newPastQuestionRepoMock(t)
	defer cleanup()

	repo := NewPastQuestionRepository(db)
	now := time.Now()
	rows := pastQuestionRows().AddRow(
		"pq-1", "course-1", "user-1", 2024, "first", "final",
		"", "", "", false, false, 0.0,
		"a.pdf", "pastquestions/a.pdf", int64(10), "pdf",
		"pending", "", nil, nil, 0, 0,
		now, now, "CS101",
	)
	status := models.StatusPending
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pq.id, pq.course_id")).
		WithArgs("course-1", status).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("course-1", status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.PastQuestionFilter{
		CourseID: "course-1",
		Status:   &status,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPastQuestionRepositoryListAscendingOrder(t *testing.T) {
	db, mock, cleanup := newPastQuestionRepoMock(t)
	defer cleanup()

	repo := NewPastQuestionRepository(db)
	status := models.StatusPending
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY pq.created_at ASC")).
		WithArgs(status).
		WillReturnRows(pastQuestionRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.PastQuestionFilter{
		Status:    &status,
		SortBy:    "created_at",
		SortOrder: "ASC",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPastQuestionRepositoryListDownloadHistory(t *testing.T) {
	db, mock, cleanup := newPastQuestionRepoMock(t)
	defer cleanup()

	repo := NewPastQuestionRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "past_question_id", "ip_address", "user_agent", "downloaded_at"}).
		AddRow("dl-1", "user-1", "pq-1", "10.0.0.1", "agent", now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, past_question_id")).
		WithArgs("user-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	history, total, err := repo.ListDownloadHistory(context.Background(), models.DownloadHistoryFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
