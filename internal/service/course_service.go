package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/osei-dev/pastq-api/internal/dto"
	"github.com/osei-dev/pastq-api/internal/models"
	appErrors "github.com/osei-dev/pastq-api/pkg/errors"
)

type courseStore interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id string) (*models.Course, error)
	GetByCode(ctx context.Context, code string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListFaculties(ctx context.Context) ([]string, error)
	ListDepartments(ctx context.Context, faculty string) ([]string, error)
	ListPopular(ctx context.Context, limit int) ([]models.Course, error)
	Update(ctx context.Context, course *models.Course) error
	SoftDelete(ctx context.Context, id string) error
}

// CourseService manages the course catalog.
type CourseService struct {
	repo     courseStore
	cache    listingCache
	audit    auditLogger
	logger   *zap.Logger
	cacheTTL time.Duration
}

const courseCachePrefix = "courses:"

// NewCourseService constructs the service.
func NewCourseService(repo courseStore, cache listingCache, audit auditLogger, cacheTTL time.Duration, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &CourseService{repo: repo, cache: cache, audit: audit, logger: logger, cacheTTL: cacheTTL}
}

// Create adds a catalog entry. Moderators and admins only.
func (s *CourseService) Create(ctx context.Context, req dto.CreateCourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.CanModerate() {
		return nil, appErrors.ErrForbidden
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" || strings.TrimSpace(req.Title) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "code and title are required")
	}
	if _, err := s.repo.GetByCode(ctx, code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}

	creditHours := req.CreditHours
	if creditHours <= 0 {
		creditHours = 3
	}
	course := &models.Course{
		Code:        code,
		Title:       strings.TrimSpace(req.Title),
		Faculty:     strings.TrimSpace(req.Faculty),
		Department:  strings.TrimSpace(req.Department),
		Level:       strings.TrimSpace(req.Level),
		CreditHours: creditHours,
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidate(ctx)
	s.emitAudit(ctx, actor.UserID, models.AuditActionCourseCreate, course.ID, course.Code)
	return course, nil
}

// Get returns a single course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// GetByCode returns a single course by its catalog code.
func (s *CourseService) GetByCode(ctx context.Context, code string) (*models.Course, error) {
	course, err := s.repo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Faculties lists the distinct faculties represented in the catalog.
func (s *CourseService) Faculties(ctx context.Context) ([]string, error) {
	faculties, err := s.repo.ListFaculties(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculties")
	}
	return faculties, nil
}

// Departments lists distinct departments, optionally within one faculty.
func (s *CourseService) Departments(ctx context.Context, faculty string) ([]string, error) {
	departments, err := s.repo.ListDepartments(ctx, strings.TrimSpace(faculty))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, nil
}

// Popular ranks active courses by how many approved papers they carry.
func (s *CourseService) Popular(ctx context.Context, limit int) ([]models.Course, error) {
	courses, err := s.repo.ListPopular(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list popular courses")
	}
	return courses, nil
}

// List returns the catalog with short-lived caching on unfiltered pages.
func (s *CourseService) List(ctx context.Context, query dto.CourseQuery) ([]models.Course, *models.Pagination, error) {
	active := true
	filter := models.CourseFilter{
		Faculty:    strings.TrimSpace(query.Faculty),
		Department: strings.TrimSpace(query.Department),
		Level:      strings.TrimSpace(query.Level),
		IsActive:   &active,
		Search:     strings.TrimSpace(query.Search),
		Page:       query.Page,
		PageSize:   query.PageSize,
		SortBy:     query.SortBy,
		SortOrder:  query.SortOrder,
	}

	type cachedPage struct {
		Courses    []models.Course    `json:"courses"`
		Pagination *models.Pagination `json:"pagination"`
	}

	key := ""
	cacheable := filter.Search == "" && s.cache != nil
	if cacheable {
		key = fmt.Sprintf("%s%s:%s:%s:%d:%d:%s:%s", courseCachePrefix,
			filter.Faculty, filter.Department, filter.Level, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
		var cached cachedPage
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached.Courses, cached.Pagination, nil
		}
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	pagination := paginationFor(filter.Page, filter.PageSize, total)

	if cacheable {
		if err := s.cache.Set(ctx, key, cachedPage{Courses: courses, Pagination: pagination}, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache course listing", zap.Error(err))
		}
	}
	return courses, pagination, nil
}

// Update applies partial changes to a course. Moderators and admins only.
func (s *CourseService) Update(ctx context.Context, id string, req dto.UpdateCourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.CanModerate() {
		return nil, appErrors.ErrForbidden
	}

	course, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if req.Title != nil {
		course.Title = strings.TrimSpace(*req.Title)
	}
	if req.Faculty != nil {
		course.Faculty = strings.TrimSpace(*req.Faculty)
	}
	if req.Department != nil {
		course.Department = strings.TrimSpace(*req.Department)
	}
	if req.Level != nil {
		course.Level = strings.TrimSpace(*req.Level)
	}
	if req.CreditHours != nil {
		course.CreditHours = *req.CreditHours
	}
	if req.Description != nil {
		course.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsActive != nil {
		course.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidate(ctx)
	s.emitAudit(ctx, actor.UserID, models.AuditActionCourseUpdate, course.ID, course.Code)
	return course, nil
}

// Delete soft-deletes a course. Existing submissions keep their references.
// Moderators and admins only.
func (s *CourseService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.CanModerate() {
		return appErrors.ErrForbidden
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidate(ctx)
	s.emitAudit(ctx, actor.UserID, models.AuditActionCourseDelete, id, "")
	return nil
}

func (s *CourseService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, courseCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate course cache", zap.Error(err))
	}
}

func (s *CourseService) emitAudit(ctx context.Context, actorID, action, entityID, detail string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:   &actorID,
		Action:   action,
		Entity:   "course",
		EntityID: entityID,
		Detail:   detail,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
