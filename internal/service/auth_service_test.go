package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/osei-dev/pastq-api/internal/models"
	appErrors "github.com/osei-dev/pastq-api/pkg/errors"
)

type authRepoStub struct {
	users   map[string]*models.User
	tokens  map[string]*models.RefreshToken
	audits  []*models.AuditLog
	revoked []string
}

func newAuthRepoStub() *authRepoStub {
	return &authRepoStub{
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

func (a *authRepoStub) FindByIndexNumber(ctx context.Context, indexNumber string) (*models.User, error) {
	for _, u := range a.users {
		if u.IndexNumber == indexNumber {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (a *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range a.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (a *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := a.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (a *authRepoStub) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "user-" + user.IndexNumber
	}
	clone := *user
	a.users[user.ID] = &clone
	return nil
}

func (a *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if u, ok := a.users[id]; ok {
		u.LastLogin = &ts
	}
	return nil
}

func (a *authRepoStub) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if u, ok := a.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (a *authRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	for _, tok := range a.tokens {
		if tok.UserID == userID && tok.RevokedAt == nil {
			tok.RevokedAt = &now
		}
	}
	return nil
}

func (a *authRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	clone := *token
	a.tokens[token.TokenHash] = &clone
	return nil
}

func (a *authRepoStub) FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	if tok, ok := a.tokens[tokenHash]; ok {
		clone := *tok
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (a *authRepoStub) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, tok := range a.tokens {
		if tok.ID == id {
			tok.RevokedAt = &revokedAt
		}
	}
	a.revoked = append(a.revoked, id)
	return nil
}

func (a *authRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.audits = append(a.audits, log)
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *authRepoStub) {
	t.Helper()
	repo := newAuthRepoStub()
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "pastq-api",
	})
	return svc, repo
}

func seedUser(t *testing.T, repo *authRepoStub, indexNumber, password string, active bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           "user-" + indexNumber,
		IndexNumber:  indexNumber,
		Email:        indexNumber + "@st.edu",
		PasswordHash: string(hash),
		FullName:     "Test Student",
		IsActive:     active,
	}
	repo.users[user.ID] = user
	return user
}

func TestRegisterAndLogin(t *testing.T) {
	svc, repo := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, models.RegisterRequest{
		IndexNumber: "ug12345",
		Email:       "Ama@ST.edu",
		Password:    "correct-horse",
		FullName:    "Ama Owusu",
	})
	require.NoError(t, err)
	require.Equal(t, "UG12345", user.IndexNumber)
	require.Equal(t, "ama@st.edu", user.Email)
	require.True(t, user.IsActive)
	require.False(t, user.IsAdmin)
	require.NotEqual(t, "correct-horse", user.PasswordHash)

	resp, err := svc.Login(ctx, models.LoginRequest{IndexNumber: "UG12345", Password: "correct-horse"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, "UG12345", resp.User.IndexNumber)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.True(t, claims.Active)
	require.False(t, claims.CanModerate())

	_ = repo
}

func TestRegisterDuplicateIndexNumber(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedUser(t, repo, "UG12345", "pw-longer", true)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		IndexNumber: "UG12345",
		Email:       "other@st.edu",
		Password:    "password1",
		FullName:    "Other",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestLoginFailures(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedUser(t, repo, "UG12345", "secret-pass", true)
	seedUser(t, repo, "UG99999", "secret-pass", false)
	ctx := context.Background()

	_, err := svc.Login(ctx, models.LoginRequest{IndexNumber: "UG00000", Password: "whatever"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, models.LoginRequest{IndexNumber: "UG12345", Password: "wrong"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, models.LoginRequest{IndexNumber: "UG99999", Password: "secret-pass"})
	require.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedUser(t, repo, "UG12345", "secret-pass", true)
	ctx := context.Background()

	login, err := svc.Login(ctx, models.LoginRequest{IndexNumber: "UG12345", Password: "secret-pass"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked and cannot be replayed.
	_, err = svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, repo := newAuthFixture(t)
	user := seedUser(t, repo, "UG12345", "old-password", true)
	ctx := context.Background()

	login, err := svc.Login(ctx, models.LoginRequest{IndexNumber: "UG12345", Password: "old-password"})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, models.ChangePasswordRequest{
		OldPassword: "old-password",
		NewPassword: "brand-new-password",
	})
	require.NoError(t, err)

	_, err = svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)

	_, err = svc.Login(ctx, models.LoginRequest{IndexNumber: "UG12345", Password: "brand-new-password"})
	require.NoError(t, err)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	svc, repo := newAuthFixture(t)
	seedUser(t, repo, "UG12345", "secret-pass", true)

	login, err := svc.Login(context.Background(), models.LoginRequest{IndexNumber: "UG12345", Password: "secret-pass"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(login.AccessToken + "x")
	require.Error(t, err)

	other := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "different", AccessTokenExpiry: time.Minute})
	_, err = other.ValidateToken(login.AccessToken)
	require.Error(t, err)
}
