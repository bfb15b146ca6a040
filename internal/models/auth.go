package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest holds the payload for creating an account.
type RegisterRequest struct {
	IndexNumber string `json:"index_number" validate:"required,min=4"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FullName    string `json:"full_name" validate:"required"`
	Faculty     string `json:"faculty"`
	Department  string `json:"department"`
	Level       string `json:"level"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	IndexNumber string `json:"index_number" validate:"required"`
	Password    string `json:"password" validate:"required"`
	IP          string `json:"-"`
	UserAgent   string `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         UserInfo  `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID          string `json:"id"`
	IndexNumber string `json:"index_number"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	IsAdmin     bool   `json:"is_admin"`
	IsModerator bool   `json:"is_moderator"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID      string `json:"user_id"`
	IndexNumber string `json:"index_number"`
	Email       string `json:"email"`
	IsAdmin     bool   `json:"is_admin"`
	IsModerator bool   `json:"is_moderator"`
	Active      bool   `json:"active"`
	jwt.RegisteredClaims
}

// CanModerate mirrors the capability rule for token-carried identities.
func (c *JWTClaims) CanModerate() bool {
	return (c.IsModerator || c.IsAdmin) && c.Active
}

// CanAdminister reports whether the token grants administrative access.
func (c *JWTClaims) CanAdminister() bool {
	return c.IsAdmin && c.Active
}

// IsPrivileged reports whether counter bumps are skipped for this identity.
func (c *JWTClaims) IsPrivileged() bool {
	return (c.IsAdmin || c.IsModerator) && c.Active
}
