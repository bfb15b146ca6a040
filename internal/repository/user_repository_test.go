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

func newUserRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "index_number", "email", "password_hash", "full_name", "faculty", "department", "level",
		"is_admin", "is_moderator", "is_active", "upload_count", "successful_uploads", "download_count", "reputation",
		"last_login", "deleted_at", "created_at", "updated_at",
	})
}

func TestUserRepositoryFindByIndexNumber(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	now := time.Now()
	rows := userRows().AddRow(
		"user-1", "UG12345", "ama@st.edu", "hash", "Ama Owusu", "Science", "CS", "300",
		false, false, true, 6, 6, 12, 55,
		nil, nil, now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, index_number")).
		WithArgs("UG12345").
		WillReturnRows(rows)

	user, err := repo.FindByIndexNumber(context.Background(), "UG12345")
	require.NoError(t, err)
	require.Equal(t, "user-1", user.ID)
	require.True(t, user.IsVerifiedUploader())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIndexNumberNotFound(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, index_number")).
		WithArgs("UG00000").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByIndexNumber(context.Background(), "UG00000")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{
		IndexNumber:  "UG12345",
		Email:        "ama@st.edu",
		PasswordHash: "hash",
		FullName:     "Ama Owusu",
		IsActive:     true,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	require.NotEmpty(t, user.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET deleted_at")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SoftDelete(context.Background(), "user-1"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET deleted_at")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.SoftDelete(context.Background(), "user-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRefreshTokenLifecycle(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	token := &models.RefreshToken{
		UserID:    "user-1",
		TokenHash: "abc123",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.CreateRefreshToken(context.Background(), token))

	rows := sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "revoked_at", "created_at"}).
		AddRow(token.ID, "user-1", "abc123", token.ExpiresAt, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, token_hash")).
		WithArgs("abc123").
		WillReturnRows(rows)

	found, err := repo.FindRefreshToken(context.Background(), "abc123")
	require.NoError(t, err)
	require.True(t, found.Valid(time.Now()))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RevokeRefreshToken(context.Background(), found.ID, time.Now()))
	require.NoError(t, mock.ExpectationsWereMet())
}
