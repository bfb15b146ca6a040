package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/osei-dev/pastq-api/internal/dto"
	"github.com/osei-dev/pastq-api/internal/models"
	appErrors "github.com/osei-dev/pastq-api/pkg/errors"
)

type pastQuestionStore interface {
	Create(ctx context.Context, pq *models.PastQuestion) error
	GetByID(ctx context.Context, id string) (*models.PastQuestion, error)
	List(ctx context.Context, filter models.PastQuestionFilter) ([]models.PastQuestion, int, error)
	ListPopular(ctx context.Context, limit int) ([]models.PastQuestion, error)
	ListDownloadHistory(ctx context.Context, filter models.DownloadHistoryFilter) ([]models.DownloadHistory, int, error)
	CountByStatus(ctx context.Context) (map[models.SubmissionStatus]int, error)
	Delete(ctx context.Context, id string) error
}

type statLedger interface {
	RecordUpload(ctx context.Context, userID string) error
	Approve(ctx context.Context, submissionID, reviewerID string, reviewedAt time.Time) error
	Reject(ctx context.Context, submissionID, reviewerID, reason string, reviewedAt time.Time) error
	RecordView(ctx context.Context, submissionID, viewerID string) error
	RecordDownload(ctx context.Context, entry *models.DownloadHistory) error
}

type courseLookup interface {
	GetByID(ctx context.Context, id string) (*models.Course, error)
}

type submissionFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (io.ReadCloser, error)
	Exists(filename string) bool
	Delete(filename string) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type reviewPublisher interface {
	PublishSubmitted(pq *models.PastQuestion) error
	PublishReviewed(pq *models.PastQuestion) error
}

type listingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// UploadLimits bounds accepted submission files.
type UploadLimits struct {
	MaxFileSizeBytes  int64
	AllowedExtensions []string
	MinYear           int
}

// PastQuestionService orchestrates uploads, the review workflow, and
// counter-bearing reads. All counter writes go through the ledger.
type PastQuestionService struct {
	repo    pastQuestionStore
	ledger  statLedger
	courses courseLookup
	storage submissionFileStorage
	audit   auditLogger
	events  reviewPublisher
	cache   listingCache
	limits  UploadLimits
	logger  *zap.Logger
	now     func() time.Time
}

const popularCacheKey = "pastq:popular"
const popularCacheTTL = 5 * time.Minute

// NewPastQuestionService constructs the service.
func NewPastQuestionService(
	repo pastQuestionStore,
	ledger statLedger,
	courses courseLookup,
	storage submissionFileStorage,
	audit auditLogger,
	events reviewPublisher,
	cache listingCache,
	limits UploadLimits,
	logger *zap.Logger,
) *PastQuestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.MaxFileSizeBytes <= 0 {
		limits.MaxFileSizeBytes = 10 << 20
	}
	if len(limits.AllowedExtensions) == 0 {
		limits.AllowedExtensions = []string{"pdf", "jpg", "jpeg", "png"}
	}
	if limits.MinYear <= 0 {
		limits.MinYear = 2000
	}
	return &PastQuestionService{
		repo:    repo,
		ledger:  ledger,
		courses: courses,
		storage: storage,
		audit:   audit,
		events:  events,
		cache:   cache,
		limits:  limits,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upload validates and stores a new submission. The row is created first so
// the filing-uniqueness constraint fires before any bytes hit disk; when the
// file write or the upload counter fails afterwards, the row and the stored
// file are removed again so no submission exists without its counter.
func (s *PastQuestionService) Upload(ctx context.Context, req dto.CreatePastQuestionRequest, fileName string, fileSize int64, file io.Reader, actor *models.JWTClaims) (*models.PastQuestion, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Active {
		return nil, appErrors.ErrInactiveAccount
	}

	ext, err := s.validateFile(fileName, fileSize)
	if err != nil {
		return nil, err
	}
	if err := s.validateYear(req.Year); err != nil {
		return nil, err
	}
	if !req.Semester.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid semester")
	}
	if !req.ExamType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid exam type")
	}

	course, err := s.courses.GetByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.IsActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course is not accepting submissions")
	}

	storedPath := fmt.Sprintf("pastquestions/%s/%s.%s", course.Code, uuid.NewString(), ext)
	pq := &models.PastQuestion{
		CourseID:     course.ID,
		UploadedBy:   actor.UserID,
		Year:         req.Year,
		Semester:     req.Semester,
		ExamType:     req.ExamType,
		Title:        strings.TrimSpace(req.Title),
		Lecturer:     strings.TrimSpace(req.Lecturer),
		Description:  strings.TrimSpace(req.Description),
		HasSolutions: req.HasSolutions,
		IsScanned:    req.IsScanned,
		FileName:     filepath.Base(fileName),
		FilePath:     storedPath,
		FileSize:     fileSize,
		FileType:     ext,
		Status:       models.StatusPending,
		CourseCode:   course.Code,
	}
	if err := s.repo.Create(ctx, pq); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to file submission")
	}

	if _, err := s.storage.SaveStream(storedPath, file); err != nil {
		if delErr := s.repo.Delete(ctx, pq.ID); delErr != nil {
			s.logger.Error("failed to remove submission after storage failure",
				zap.String("submission_id", pq.ID), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	if err := s.ledger.RecordUpload(ctx, actor.UserID); err != nil {
		if delErr := s.storage.Delete(storedPath); delErr != nil {
			s.logger.Error("failed to remove stored file after counter failure",
				zap.String("submission_id", pq.ID), zap.Error(delErr))
		}
		if delErr := s.repo.Delete(ctx, pq.ID); delErr != nil {
			s.logger.Error("failed to remove submission after counter failure",
				zap.String("submission_id", pq.ID), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record upload")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionSubmissionUpload, pq.ID, pq.FileName)
	s.publish(func() error { return s.events.PublishSubmitted(pq) }, pq.ID)
	return pq, nil
}

// Get loads a submission and applies the view policy. Pending and rejected
// submissions are only visible to their uploader and to moderators.
func (s *PastQuestionService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.PastQuestion, error) {
	pq, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	if pq.Status != models.StatusApproved {
		if actor == nil || (actor.UserID != pq.UploadedBy && !actor.CanModerate()) {
			return nil, appErrors.ErrNotFound
		}
		return pq, nil
	}

	// Privileged viewers do not move counters.
	if actor != nil && actor.IsPrivileged() {
		return pq, nil
	}

	viewerID := ""
	if actor != nil {
		viewerID = actor.UserID
	}
	if err := s.ledger.RecordView(ctx, pq.ID, viewerID); err != nil {
		s.logger.Warn("failed to record view", zap.String("submission_id", pq.ID), zap.Error(err))
	} else {
		pq.ViewCount++
		if viewerID != "" {
			pq.DownloadCount++
		}
	}
	return pq, nil
}

// Approve flips a pending or rejected submission to approved.
// A submission that is already approved is reported as a conflict, including
// when a concurrent reviewer won the race.
func (s *PastQuestionService) Approve(ctx context.Context, id string, reviewer *models.JWTClaims) (*models.PastQuestion, error) {
	if reviewer == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !reviewer.CanModerate() {
		return nil, appErrors.ErrForbidden
	}

	pq, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if pq.Status == models.StatusApproved {
		return nil, appErrors.ErrAlreadyApproved
	}

	now := s.now()
	if err := s.ledger.Approve(ctx, pq.ID, reviewer.UserID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAlreadyApproved
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve submission")
	}

	pq.Status = models.StatusApproved
	pq.RejectionReason = ""
	pq.ReviewedBy = &reviewer.UserID
	pq.ReviewedAt = &now

	s.invalidateListings(ctx)
	s.emitAudit(ctx, reviewer.UserID, models.AuditActionSubmissionApprove, pq.ID, "")
	s.publish(func() error { return s.events.PublishReviewed(pq) }, pq.ID)
	return pq, nil
}

// Reject marks a submission rejected. A non-empty reason is mandatory and a
// reviewer may reject again, or reject a previously approved submission.
func (s *PastQuestionService) Reject(ctx context.Context, id string, req dto.RejectPastQuestionRequest, reviewer *models.JWTClaims) (*models.PastQuestion, error) {
	if reviewer == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !reviewer.CanModerate() {
		return nil, appErrors.ErrForbidden
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.ErrMissingReason
	}

	pq, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	now := s.now()
	if err := s.ledger.Reject(ctx, pq.ID, reviewer.UserID, reason, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject submission")
	}

	pq.Status = models.StatusRejected
	pq.RejectionReason = reason
	pq.ReviewedBy = &reviewer.UserID
	pq.ReviewedAt = &now

	s.invalidateListings(ctx)
	s.emitAudit(ctx, reviewer.UserID, models.AuditActionSubmissionReject, pq.ID, reason)
	s.publish(func() error { return s.events.PublishReviewed(pq) }, pq.ID)
	return pq, nil
}

// Download records the download and returns a reader for the stored file.
// The counters and the history row commit before the first byte streams, so
// an interrupted transfer still counts once and never twice.
func (s *PastQuestionService) Download(ctx context.Context, id, ip, userAgent string, actor *models.JWTClaims) (io.ReadCloser, *models.PastQuestion, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if !actor.Active {
		return nil, nil, appErrors.ErrInactiveAccount
	}

	pq, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if pq.Status != models.StatusApproved && !actor.CanModerate() {
		return nil, nil, appErrors.ErrNotApproved
	}
	if !s.storage.Exists(pq.FilePath) {
		return nil, nil, appErrors.ErrFileMissing
	}

	entry := &models.DownloadHistory{
		UserID:         actor.UserID,
		PastQuestionID: pq.ID,
		IPAddress:      ip,
		UserAgent:      userAgent,
	}
	if err := s.ledger.RecordDownload(ctx, entry); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record download")
	}
	pq.DownloadCount++

	file, err := s.storage.Open(pq.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrFileMissing.Code, appErrors.ErrFileMissing.Status, "failed to open stored file")
	}
	return file, pq, nil
}

// List returns submissions matching the query. Anonymous callers and regular
// users only ever see approved submissions; moderators may filter by status.
func (s *PastQuestionService) List(ctx context.Context, query dto.PastQuestionQuery, actor *models.JWTClaims) ([]models.PastQuestion, *models.Pagination, error) {
	filter := models.PastQuestionFilter{
		CourseID:   query.CourseID,
		CourseCode: strings.TrimSpace(query.CourseCode),
		Year:       query.Year,
		Semester:   query.Semester,
		ExamType:   query.ExamType,
		Search:     strings.TrimSpace(query.Search),
		Page:       query.Page,
		PageSize:   query.PageSize,
		SortBy:     query.SortBy,
		SortOrder:  query.SortOrder,
	}
	approved := models.StatusApproved
	if actor != nil && actor.CanModerate() && query.Status != nil {
		filter.Status = query.Status
	} else {
		filter.Status = &approved
	}

	pqs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return pqs, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListPending returns the moderation queue, oldest submission first so the
// longest-waiting uploads are reviewed before newer ones.
func (s *PastQuestionService) ListPending(ctx context.Context, query dto.PastQuestionQuery, actor *models.JWTClaims) ([]models.PastQuestion, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if !actor.CanModerate() {
		return nil, nil, appErrors.ErrForbidden
	}
	pending := models.StatusPending
	query.Status = &pending
	query.SortBy = "created_at"
	query.SortOrder = "ASC"
	return s.List(ctx, query, actor)
}

// ListMine returns the caller's own submissions regardless of status.
func (s *PastQuestionService) ListMine(ctx context.Context, query dto.PastQuestionQuery, actor *models.JWTClaims) ([]models.PastQuestion, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.PastQuestionFilter{
		UploadedBy: actor.UserID,
		Status:     query.Status,
		Year:       query.Year,
		Page:       query.Page,
		PageSize:   query.PageSize,
		SortBy:     query.SortBy,
		SortOrder:  query.SortOrder,
	}
	pqs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return pqs, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListPopular returns the most downloaded approved submissions, cached briefly.
func (s *PastQuestionService) ListPopular(ctx context.Context, limit int) ([]models.PastQuestion, error) {
	if s.cache != nil {
		var cached []models.PastQuestion
		if err := s.cache.Get(ctx, popularCacheKey, &cached); err == nil {
			return cached, nil
		}
	}
	pqs, err := s.repo.ListPopular(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list popular submissions")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, popularCacheKey, pqs, popularCacheTTL); err != nil {
			s.logger.Warn("failed to cache popular listing", zap.Error(err))
		}
	}
	return pqs, nil
}

// ListMyDownloads returns the caller's download history.
func (s *PastQuestionService) ListMyDownloads(ctx context.Context, page, pageSize int, actor *models.JWTClaims) ([]models.DownloadHistory, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.DownloadHistoryFilter{UserID: actor.UserID, Page: page, PageSize: pageSize}
	history, total, err := s.repo.ListDownloadHistory(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list download history")
	}
	return history, paginationFor(page, pageSize, total), nil
}

// ListSubmissionDownloads returns a submission's download trail for reviewers.
func (s *PastQuestionService) ListSubmissionDownloads(ctx context.Context, submissionID string, page, pageSize int, actor *models.JWTClaims) ([]models.DownloadHistory, *models.Pagination, error) {
	if actor == nil || !actor.CanModerate() {
		return nil, nil, appErrors.ErrForbidden
	}
	filter := models.DownloadHistoryFilter{PastQuestionID: submissionID, Page: page, PageSize: pageSize}
	history, total, err := s.repo.ListDownloadHistory(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list download history")
	}
	return history, paginationFor(page, pageSize, total), nil
}

func (s *PastQuestionService) validateFile(fileName string, size int64) (string, error) {
	if strings.TrimSpace(fileName) == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if size <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if size > s.limits.MaxFileSizeBytes {
		return "", appErrors.ErrFileTooLarge
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	for _, allowed := range s.limits.AllowedExtensions {
		if ext == allowed {
			return ext, nil
		}
	}
	return "", appErrors.ErrUnsupportedFileType
}

func (s *PastQuestionService) validateYear(year int) error {
	maxYear := s.now().Year() + 1
	if year < s.limits.MinYear || year > maxYear {
		return appErrors.ErrInvalidYear
	}
	return nil
}

func (s *PastQuestionService) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "pastq:*"); err != nil {
		s.logger.Warn("failed to invalidate listing cache", zap.Error(err))
	}
}

func (s *PastQuestionService) emitAudit(ctx context.Context, userID, action, entityID, detail string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:   &userID,
		Action:   action,
		Entity:   "past_question",
		EntityID: entityID,
		Detail:   detail,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func (s *PastQuestionService) publish(fn func() error, submissionID string) {
	if s.events == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.Warn("failed to publish review event", zap.String("submission_id", submissionID), zap.Error(err))
	}
}

func paginationFor(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
