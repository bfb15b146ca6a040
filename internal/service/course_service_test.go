package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osei-dev/pastq-api/internal/dto"
	"github.com/osei-dev/pastq-api/internal/models"
	appErrors "github.com/osei-dev/pastq-api/pkg/errors"
)

type courseRepoStub struct {
	courses map[string]*models.Course
}

func newCourseRepoStub() *courseRepoStub {
	return &courseRepoStub{courses: make(map[string]*models.Course)}
}

func (c *courseRepoStub) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = "course-" + course.Code
	}
	clone := *course
	c.courses[course.ID] = &clone
	return nil
}

func (c *courseRepoStub) GetByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := c.courses[id]; ok {
		clone := *course
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (c *courseRepoStub) GetByCode(ctx context.Context, code string) (*models.Course, error) {
	for _, course := range c.courses {
		if course.Code == code {
			clone := *course
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (c *courseRepoStub) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	result := make([]models.Course, 0, len(c.courses))
	for _, course := range c.courses {
		if filter.IsActive != nil && course.IsActive != *filter.IsActive {
			continue
		}
		result = append(result, *course)
	}
	return result, len(result), nil
}

func (c *courseRepoStub) ListFaculties(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var faculties []string
	for _, course := range c.courses {
		if !course.IsActive || course.Faculty == "" {
			continue
		}
		if _, ok := seen[course.Faculty]; ok {
			continue
		}
		seen[course.Faculty] = struct{}{}
		faculties = append(faculties, course.Faculty)
	}
	return faculties, nil
}

func (c *courseRepoStub) ListDepartments(ctx context.Context, faculty string) ([]string, error) {
	seen := make(map[string]struct{})
	var departments []string
	for _, course := range c.courses {
		if !course.IsActive || course.Department == "" {
			continue
		}
		if faculty != "" && course.Faculty != faculty {
			continue
		}
		if _, ok := seen[course.Department]; ok {
			continue
		}
		seen[course.Department] = struct{}{}
		departments = append(departments, course.Department)
	}
	return departments, nil
}

func (c *courseRepoStub) ListPopular(ctx context.Context, limit int) ([]models.Course, error) {
	result := make([]models.Course, 0, len(c.courses))
	for _, course := range c.courses {
		if !course.IsActive {
			continue
		}
		result = append(result, *course)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (c *courseRepoStub) Update(ctx context.Context, course *models.Course) error {
	if _, ok := c.courses[course.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *course
	c.courses[course.ID] = &clone
	return nil
}

func (c *courseRepoStub) SoftDelete(ctx context.Context, id string) error {
	course, ok := c.courses[id]
	if !ok {
		return sql.ErrNoRows
	}
	course.IsActive = false
	delete(c.courses, id)
	return nil
}

func adminClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, IsAdmin: true, Active: true}
}

func TestCourseCreateStaffOnly(t *testing.T) {
	repo := newCourseRepoStub()
	svc := NewCourseService(repo, nil, &auditStub{}, 0, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.CreateCourseRequest{Code: "cs101", Title: "Intro"}, studentClaims("student-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	course, err := svc.Create(ctx, dto.CreateCourseRequest{Code: "cs101", Title: "Intro", Faculty: "Science"}, adminClaims("admin-1"))
	require.NoError(t, err)
	require.Equal(t, "CS101", course.Code)
	require.True(t, course.IsActive)
	require.Equal(t, 3, course.CreditHours)

	_, err = svc.Create(ctx, dto.CreateCourseRequest{Code: "CS101", Title: "Dup"}, adminClaims("admin-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCourseWritesOpenToModerators(t *testing.T) {
	repo := newCourseRepoStub()
	svc := NewCourseService(repo, nil, &auditStub{}, 0, nil)
	ctx := context.Background()
	mod := moderatorClaims("mod-1")

	course, err := svc.Create(ctx, dto.CreateCourseRequest{Code: "MA201", Title: "Linear Algebra"}, mod)
	require.NoError(t, err)

	newTitle := "Linear Algebra I"
	updated, err := svc.Update(ctx, course.ID, dto.UpdateCourseRequest{Title: &newTitle}, mod)
	require.NoError(t, err)
	require.Equal(t, newTitle, updated.Title)

	require.NoError(t, svc.Delete(ctx, course.ID, mod))

	inactiveMod := &models.JWTClaims{UserID: "mod-2", IsModerator: true, Active: false}
	_, err = svc.Create(ctx, dto.CreateCourseRequest{Code: "PH101", Title: "Physics"}, inactiveMod)
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestCourseUpdatePartial(t *testing.T) {
	repo := newCourseRepoStub()
	svc := NewCourseService(repo, nil, &auditStub{}, 0, nil)
	ctx := context.Background()

	course, err := svc.Create(ctx, dto.CreateCourseRequest{Code: "CS101", Title: "Intro", Faculty: "Science"}, adminClaims("admin-1"))
	require.NoError(t, err)

	newTitle := "Introduction to Computing"
	inactive := false
	updated, err := svc.Update(ctx, course.ID, dto.UpdateCourseRequest{Title: &newTitle, IsActive: &inactive}, adminClaims("admin-1"))
	require.NoError(t, err)
	require.Equal(t, newTitle, updated.Title)
	require.False(t, updated.IsActive)
	require.Equal(t, "Science", updated.Faculty)
}

func TestCourseDeleteMissing(t *testing.T) {
	repo := newCourseRepoStub()
	svc := NewCourseService(repo, nil, &auditStub{}, 0, nil)

	err := svc.Delete(context.Background(), "missing", adminClaims("admin-1"))
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCourseListFiltersActive(t *testing.T) {
	repo := newCourseRepoStub()
	repo.courses["c1"] = &models.Course{ID: "c1", Code: "CS101", IsActive: true}
	repo.courses["c2"] = &models.Course{ID: "c2", Code: "CS102", IsActive: false}
	svc := NewCourseService(repo, nil, nil, 0, nil)

	list, pagination, err := svc.List(context.Background(), dto.CourseQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "CS101", list[0].Code)
	require.Equal(t, 1, pagination.TotalCount)
}

func TestCourseTaxonomyLists(t *testing.T) {
	repo := newCourseRepoStub()
	repo.courses["c1"] = &models.Course{ID: "c1", Code: "CS101", Faculty: "Computing", Department: "Computer Science", IsActive: true}
	repo.courses["c2"] = &models.Course{ID: "c2", Code: "CS201", Faculty: "Computing", Department: "Information Systems", IsActive: true}
	repo.courses["c3"] = &models.Course{ID: "c3", Code: "ME101", Faculty: "Engineering", Department: "Mechanical", IsActive: false}
	svc := NewCourseService(repo, nil, nil, 0, nil)
	ctx := context.Background()

	faculties, err := svc.Faculties(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Computing"}, faculties)

	departments, err := svc.Departments(ctx, "Computing")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Computer Science", "Information Systems"}, departments)
}
