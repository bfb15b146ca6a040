package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/osei-dev/pastq-api/internal/models"
)

func newLedgerMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStatLedgerApproveCommitsAllCredits(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	ledger := NewStatLedgerRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE past_questions")).
		WithArgs("pq-1", "mod-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs("pq-1", approvalReputationAward, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses")).
		WithArgs("pq-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, ledger.Approve(context.Background(), "pq-1", "mod-1", now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatLedgerApproveAlreadyApproved(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	ledger := NewStatLedgerRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE past_questions")).
		WithArgs("pq-1", "mod-1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := ledger.Approve(context.Background(), "pq-1", "mod-1", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatLedgerRejectMissingSubmission(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	ledger := NewStatLedgerRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE past_questions")).
		WithArgs("missing", "bad scan", "mod-1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := ledger.Reject(context.Background(), "missing", "mod-1", "bad scan", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatLedgerRecordViewAnonymous(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	ledger := NewStatLedgerRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE past_questions SET view_count = view_count + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ledger.RecordView(context.Background(), "pq-1", ""))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatLedgerRecordViewAuthenticated(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	ledger := NewStatLedgerRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE past_questions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET download_count = download_count + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, ledger.RecordView(context.Background(), "pq-1", "user-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatLedgerRecordDownloadWritesHistoryInSameTx(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	ledger := NewStatLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE past_questions SET download_count = download_count + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET download_count = download_count + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO download_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entry := &models.DownloadHistory{
		UserID:         "user-1",
		PastQuestionID: "pq-1",
		IPAddress:      "10.0.0.1",
		UserAgent:      "test-agent",
	}
	require.NoError(t, ledger.RecordDownload(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.DownloadedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatLedgerRecordDownloadRollsBackOnHistoryFailure(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	ledger := NewStatLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE past_questions SET download_count = download_count + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET download_count = download_count + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO download_history")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	entry := &models.DownloadHistory{UserID: "user-1", PastQuestionID: "pq-1"}
	require.Error(t, ledger.RecordDownload(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}
