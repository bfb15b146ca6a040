package models

import "time"

// Thresholds a user must reach to be considered a verified uploader.
const (
	VerifiedUploaderMinReputation = 50
	VerifiedUploaderMinUploads    = 5
)

// User represents an account stored in the users table.
type User struct {
	ID                string     `db:"id" json:"id"`
	IndexNumber       string     `db:"index_number" json:"index_number"`
	Email             string     `db:"email" json:"email"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	FullName          string     `db:"full_name" json:"full_name"`
	Faculty           string     `db:"faculty" json:"faculty"`
	Department        string     `db:"department" json:"department"`
	Level             string     `db:"level" json:"level"`
	IsAdmin           bool       `db:"is_admin" json:"is_admin"`
	IsModerator       bool       `db:"is_moderator" json:"is_moderator"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	UploadCount       int        `db:"upload_count" json:"upload_count"`
	SuccessfulUploads int        `db:"successful_uploads" json:"successful_uploads"`
	DownloadCount     int        `db:"download_count" json:"download_count"`
	Reputation        int        `db:"reputation" json:"reputation"`
	LastLogin         *time.Time `db:"last_login" json:"last_login,omitempty"`
	DeletedAt         *time.Time `db:"deleted_at" json:"-"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// CanModerate reports whether the user may review submissions.
// Role flags only grant capabilities while the account is active.
func (u *User) CanModerate() bool {
	return (u.IsModerator || u.IsAdmin) && u.IsActive
}

// CanAdminister reports whether the user may manage accounts and courses.
func (u *User) CanAdminister() bool {
	return u.IsAdmin && u.IsActive
}

// IsPrivileged reports whether the user is exempt from counter bumps.
func (u *User) IsPrivileged() bool {
	return (u.IsAdmin || u.IsModerator) && u.IsActive
}

// IsVerifiedUploader reports whether the user crossed both contribution thresholds.
func (u *User) IsVerifiedUploader() bool {
	return u.Reputation >= VerifiedUploaderMinReputation &&
		u.SuccessfulUploads >= VerifiedUploaderMinUploads
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	IsAdmin     *bool
	IsModerator *bool
	IsActive    *bool
	Faculty     string
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
