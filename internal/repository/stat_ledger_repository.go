package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/osei-dev/pastq-api/internal/models"
)

// StatLedgerRepository owns every counter mutation in the system.
// Each method runs its related writes in a single transaction so the
// counters on submissions and users can never drift apart.
type StatLedgerRepository struct {
	db *sqlx.DB
}

// NewStatLedgerRepository constructs the ledger.
func NewStatLedgerRepository(db *sqlx.DB) *StatLedgerRepository {
	return &StatLedgerRepository{db: db}
}

// RecordUpload bumps the uploader's upload_count after a submission is filed.
func (r *StatLedgerRepository) RecordUpload(ctx context.Context, userID string) error {
	const query = `UPDATE users SET upload_count = upload_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// Approve flips a submission to approved and credits the uploader and the
// course in one transaction. The guarded UPDATE returns zero rows when the
// submission is already approved, which surfaces as sql.ErrNoRows so callers
// can report the conflict.
func (r *StatLedgerRepository) Approve(ctx context.Context, submissionID, reviewerID string, reviewedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approve tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const updateSubmission = `UPDATE past_questions
	SET status = 'approved', rejection_reason = '', reviewed_by = $2, reviewed_at = $3, updated_at = $3
	WHERE id = $1 AND status <> 'approved'`
	result, err := tx.ExecContext(ctx, updateSubmission, submissionID, reviewerID, reviewedAt)
	if err != nil {
		return fmt.Errorf("approve submission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check approve rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	const creditUploader = `UPDATE users
	SET successful_uploads = successful_uploads + 1, reputation = reputation + $2, updated_at = $3
	WHERE id = (SELECT uploaded_by FROM past_questions WHERE id = $1)`
	if _, err := tx.ExecContext(ctx, creditUploader, submissionID, approvalReputationAward, reviewedAt); err != nil {
		return fmt.Errorf("credit uploader: %w", err)
	}

	const creditCourse = `UPDATE courses
	SET past_question_count = past_question_count + 1, updated_at = $2
	WHERE id = (SELECT course_id FROM past_questions WHERE id = $1)`
	if _, err := tx.ExecContext(ctx, creditCourse, submissionID, reviewedAt); err != nil {
		return fmt.Errorf("credit course: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approve tx: %w", err)
	}
	return nil
}

// Reputation points granted to the uploader when a submission is approved.
const approvalReputationAward = 10

// Reject marks a submission rejected with the given reason.
// Re-rejecting or rejecting an approved submission is allowed, matching the
// review rules where only a repeat approval is refused.
func (r *StatLedgerRepository) Reject(ctx context.Context, submissionID, reviewerID, reason string, reviewedAt time.Time) error {
	const query = `UPDATE past_questions
	SET status = 'rejected', rejection_reason = $2, reviewed_by = $3, reviewed_at = $4, updated_at = $4
	WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, submissionID, reason, reviewerID, reviewedAt)
	if err != nil {
		return fmt.Errorf("reject submission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check reject rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordView applies the view policy for a single detail fetch.
// The submission's view_count always increments. When viewerID is non-empty
// the viewer also counts as a downloader: both the submission's and the
// viewer's download_count increment in the same transaction.
func (r *StatLedgerRepository) RecordView(ctx context.Context, submissionID, viewerID string) error {
	now := time.Now().UTC()

	if viewerID == "" {
		const query = `UPDATE past_questions SET view_count = view_count + 1, updated_at = $2 WHERE id = $1`
		if _, err := r.db.ExecContext(ctx, query, submissionID, now); err != nil {
			return fmt.Errorf("record view: %w", err)
		}
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin view tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const bumpSubmission = `UPDATE past_questions
	SET view_count = view_count + 1, download_count = download_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bumpSubmission, submissionID, now); err != nil {
		return fmt.Errorf("record view counters: %w", err)
	}

	const bumpViewer = `UPDATE users SET download_count = download_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bumpViewer, viewerID, now); err != nil {
		return fmt.Errorf("record viewer counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit view tx: %w", err)
	}
	return nil
}

// RecordDownload bumps both download counters and appends the history row
// in one transaction. Callers stream the file only after this commits.
func (r *StatLedgerRepository) RecordDownload(ctx context.Context, entry *models.DownloadHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.DownloadedAt.IsZero() {
		entry.DownloadedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin download tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const bumpSubmission = `UPDATE past_questions SET download_count = download_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bumpSubmission, entry.PastQuestionID, entry.DownloadedAt); err != nil {
		return fmt.Errorf("record submission download: %w", err)
	}

	const bumpUser = `UPDATE users SET download_count = download_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bumpUser, entry.UserID, entry.DownloadedAt); err != nil {
		return fmt.Errorf("record user download: %w", err)
	}

	const insertHistory = `INSERT INTO download_history (id, user_id, past_question_id, ip_address, user_agent, downloaded_at)
	VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, insertHistory, entry.ID, entry.UserID, entry.PastQuestionID, entry.IPAddress, entry.UserAgent, entry.DownloadedAt); err != nil {
		return fmt.Errorf("insert download history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit download tx: %w", err)
	}
	return nil
}

// AddReputation adjusts a user's reputation by the given delta.
func (r *StatLedgerRepository) AddReputation(ctx context.Context, userID string, delta int) error {
	const query = `UPDATE users SET reputation = reputation + $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, delta, time.Now().UTC()); err != nil {
		return fmt.Errorf("add reputation: %w", err)
	}
	return nil
}
