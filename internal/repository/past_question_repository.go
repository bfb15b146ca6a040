package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/osei-dev/pastq-api/internal/models"
	appErrors "github.com/osei-dev/pastq-api/pkg/errors"
)

const pastQuestionColumns = `pq.id, pq.course_id, pq.uploaded_by, pq.year, pq.semester, pq.exam_type,
       pq.title, pq.lecturer, pq.description, pq.has_solutions, pq.is_scanned, pq.quality_rating,
       pq.file_name, pq.file_path, pq.file_size, pq.file_type,
       pq.status, pq.rejection_reason, pq.reviewed_by, pq.reviewed_at, pq.view_count, pq.download_count,
       pq.created_at, pq.updated_at, c.code AS course_code`

// PastQuestionRepository persists uploaded papers and their review state.
type PastQuestionRepository struct {
	db *sqlx.DB
}

// NewPastQuestionRepository constructs the repository.
func NewPastQuestionRepository(db *sqlx.DB) *PastQuestionRepository {
	return &PastQuestionRepository{db: db}
}

// Create inserts a new submission row.
// A unique-constraint violation on the filing tuple is mapped to ErrDuplicateSubmission.
func (r *PastQuestionRepository) Create(ctx context.Context, pq *models.PastQuestion) error {
	if pq.ID == "" {
		pq.ID = uuid.NewString()
	}
	if pq.Status == "" {
		pq.Status = models.StatusPending
	}
	now := time.Now().UTC()
	if pq.CreatedAt.IsZero() {
		pq.CreatedAt = now
	}
	pq.UpdatedAt = now

	const query = `INSERT INTO past_questions
	(id, course_id, uploaded_by, year, semester, exam_type, title, lecturer, description, has_solutions, is_scanned,
	 quality_rating, file_name, file_path, file_size, file_type, status, rejection_reason, created_at, updated_at)
	VALUES (:id, :course_id, :uploaded_by, :year, :semester, :exam_type, :title, :lecturer, :description, :has_solutions, :is_scanned,
	 :quality_rating, :file_name, :file_path, :file_size, :file_type, :status, :rejection_reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, pq); err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrDuplicateSubmission
		}
		return fmt.Errorf("create past question: %w", err)
	}
	return nil
}

// GetByID fetches a submission by identifier.
func (r *PastQuestionRepository) GetByID(ctx context.Context, id string) (*models.PastQuestion, error) {
	query := fmt.Sprintf(`SELECT %s FROM past_questions pq JOIN courses c ON c.id = pq.course_id WHERE pq.id = $1`, pastQuestionColumns)
	var pq models.PastQuestion
	if err := r.db.GetContext(ctx, &pq, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get past question by id: %w", err)
	}
	return &pq, nil
}

// List returns submissions matching the filter with total count.
func (r *PastQuestionRepository) List(ctx context.Context, filter models.PastQuestionFilter) ([]models.PastQuestion, int, error) {
	baseQuery := `FROM past_questions pq JOIN courses c ON c.id = pq.course_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("pq.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.CourseCode != "" {
		conditions = append(conditions, fmt.Sprintf("c.code = $%d", len(args)+1))
		args = append(args, filter.CourseCode)
	}
	if filter.UploadedBy != "" {
		conditions = append(conditions, fmt.Sprintf("pq.uploaded_by = $%d", len(args)+1))
		args = append(args, filter.UploadedBy)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("pq.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("pq.year = $%d", len(args)+1))
		args = append(args, *filter.Year)
	}
	if filter.Semester != nil {
		conditions = append(conditions, fmt.Sprintf("pq.semester = $%d", len(args)+1))
		args = append(args, *filter.Semester)
	}
	if filter.ExamType != nil {
		conditions = append(conditions, fmt.Sprintf("pq.exam_type = $%d", len(args)+1))
		args = append(args, *filter.ExamType)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(pq.title) LIKE $%d OR LOWER(c.code) LIKE $%d OR LOWER(c.title) LIKE $%d OR LOWER(pq.lecturer) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"year":           true,
		"created_at":     true,
		"view_count":     true,
		"download_count": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY pq.%s %s LIMIT %d OFFSET %d", pastQuestionColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var pqs []models.PastQuestion
	if err := r.db.SelectContext(ctx, &pqs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list past questions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count past questions: %w", err)
	}

	return pqs, total, nil
}

// ListPopular returns the most downloaded approved submissions.
func (r *PastQuestionRepository) ListPopular(ctx context.Context, limit int) ([]models.PastQuestion, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT %s FROM past_questions pq JOIN courses c ON c.id = pq.course_id
	WHERE pq.status = 'approved' ORDER BY pq.download_count DESC, pq.view_count DESC LIMIT %d`, pastQuestionColumns, limit)
	var pqs []models.PastQuestion
	if err := r.db.SelectContext(ctx, &pqs, query); err != nil {
		return nil, fmt.Errorf("list popular past questions: %w", err)
	}
	return pqs, nil
}

// ListDownloadHistory returns history rows matching the filter with total count.
func (r *PastQuestionRepository) ListDownloadHistory(ctx context.Context, filter models.DownloadHistoryFilter) ([]models.DownloadHistory, int, error) {
	baseQuery := `FROM download_history WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.PastQuestionID != "" {
		conditions = append(conditions, fmt.Sprintf("past_question_id = $%d", len(args)+1))
		args = append(args, filter.PastQuestionID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("downloaded_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("downloaded_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT id, user_id, past_question_id, ip_address, user_agent, downloaded_at
	%s ORDER BY downloaded_at DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var history []models.DownloadHistory
	if err := r.db.SelectContext(ctx, &history, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list download history: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count download history: %w", err)
	}

	return history, total, nil
}

// CountByStatus returns submission totals grouped by status.
func (r *PastQuestionRepository) CountByStatus(ctx context.Context) (map[models.SubmissionStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS total FROM past_questions GROUP BY status`
	rows := []struct {
		Status models.SubmissionStatus `db:"status"`
		Total  int                     `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count past questions by status: %w", err)
	}
	counts := make(map[models.SubmissionStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// Delete removes a submission row. Used when a stored file cannot be persisted.
func (r *PastQuestionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM past_questions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete past question: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
