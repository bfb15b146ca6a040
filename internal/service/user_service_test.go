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

type userRepoStub struct {
	users   map[string]*models.User
	deleted map[string]bool
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: make(map[string]*models.User), deleted: make(map[string]bool)}
}

func (u *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := u.users[id]; ok && !u.deleted[id] {
		clone := *user
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (u *userRepoStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	result := make([]models.User, 0, len(u.users))
	for id, user := range u.users {
		if u.deleted[id] {
			continue
		}
		result = append(result, *user)
	}
	return result, len(result), nil
}

func (u *userRepoStub) Update(ctx context.Context, user *models.User) error {
	if _, ok := u.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *user
	u.users[user.ID] = &clone
	return nil
}

func (u *userRepoStub) Deactivate(ctx context.Context, id string) error {
	user, ok := u.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.IsActive = false
	return nil
}

func (u *userRepoStub) SoftDelete(ctx context.Context, id string) error {
	if _, ok := u.users[id]; !ok || u.deleted[id] {
		return sql.ErrNoRows
	}
	u.deleted[id] = true
	u.users[id].IsActive = false
	return nil
}

func (u *userRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return nil
}

type reputationLedgerStub struct {
	repo *userRepoStub
}

func (l *reputationLedgerStub) AddReputation(ctx context.Context, userID string, delta int) error {
	user, ok := l.repo.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.Reputation += delta
	return nil
}

func TestUserGetRestrictedToSelf(t *testing.T) {
	repo := newUserRepoStub()
	repo.users["user-1"] = &models.User{ID: "user-1", IndexNumber: "UG1001", IsActive: true}
	repo.users["user-2"] = &models.User{ID: "user-2", IndexNumber: "UG1002", IsActive: true}
	svc := NewUserService(repo, nil, nil)
	ctx := context.Background()

	got, err := svc.Get(ctx, "user-1", studentClaims("user-1"))
	require.NoError(t, err)
	require.Equal(t, "UG1001", got.IndexNumber)

	_, err = svc.Get(ctx, "user-2", studentClaims("user-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	got, err = svc.Get(ctx, "user-2", adminClaims("admin-1"))
	require.NoError(t, err)
	require.Equal(t, "UG1002", got.IndexNumber)
}

func TestUserUpdateProfile(t *testing.T) {
	repo := newUserRepoStub()
	repo.users["user-1"] = &models.User{ID: "user-1", FullName: "Ama Mensah", Faculty: "Computing", IsActive: true}
	svc := NewUserService(repo, nil, nil)
	ctx := context.Background()

	name := "Ama A. Mensah"
	level := "300"
	updated, err := svc.UpdateProfile(ctx, dto.UpdateProfileRequest{FullName: &name, Level: &level}, studentClaims("user-1"))
	require.NoError(t, err)
	require.Equal(t, name, updated.FullName)
	require.Equal(t, level, updated.Level)
	require.Equal(t, "Computing", updated.Faculty)

	empty := "  "
	_, err = svc.UpdateProfile(ctx, dto.UpdateProfileRequest{FullName: &empty}, studentClaims("user-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserSetRoleFlagsAdminOnly(t *testing.T) {
	repo := newUserRepoStub()
	repo.users["user-1"] = &models.User{ID: "user-1", IsActive: true}
	svc := NewUserService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.SetRoleFlags(ctx, "user-1", false, true, moderatorClaims("mod-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	updated, err := svc.SetRoleFlags(ctx, "user-1", false, true, adminClaims("admin-1"))
	require.NoError(t, err)
	require.True(t, updated.IsModerator)
	require.False(t, updated.IsAdmin)
}

func TestUserAdjustReputationAdminOnly(t *testing.T) {
	repo := newUserRepoStub()
	repo.users["user-1"] = &models.User{ID: "user-1", Reputation: 20, IsActive: true}
	svc := NewUserService(repo, &reputationLedgerStub{repo: repo}, nil)
	ctx := context.Background()

	_, err := svc.AdjustReputation(ctx, "user-1", 5, studentClaims("user-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.AdjustReputation(ctx, "user-1", 0, adminClaims("admin-1"))
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	updated, err := svc.AdjustReputation(ctx, "user-1", -5, adminClaims("admin-1"))
	require.NoError(t, err)
	require.Equal(t, 15, updated.Reputation)

	_, err = svc.AdjustReputation(ctx, "missing", 5, adminClaims("admin-1"))
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserDeleteSelfOrAdmin(t *testing.T) {
	repo := newUserRepoStub()
	repo.users["user-1"] = &models.User{ID: "user-1", IsActive: true}
	repo.users["user-2"] = &models.User{ID: "user-2", IsActive: true}
	svc := NewUserService(repo, nil, nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.Delete(ctx, "user-2", studentClaims("user-1")), appErrors.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "user-1", studentClaims("user-1")))
	require.True(t, repo.deleted["user-1"])

	require.NoError(t, svc.Delete(ctx, "user-2", adminClaims("admin-1")))
	require.ErrorIs(t, svc.Delete(ctx, "user-2", adminClaims("admin-1")), appErrors.ErrNotFound)
}
