package dto

import "github.com/osei-dev/pastq-api/internal/models"

// UpdateRoleFlagsRequest sets a user's role flags. Both flags are sent
// together so a single call fully describes the target role state.
type UpdateRoleFlagsRequest struct {
	IsAdmin     bool `json:"is_admin"`
	IsModerator bool `json:"is_moderator"`
}

// UpdateProfileRequest carries a user's own profile changes.
type UpdateProfileRequest struct {
	FullName   *string `json:"full_name,omitempty"`
	Faculty    *string `json:"faculty,omitempty"`
	Department *string `json:"department,omitempty"`
	Level      *string `json:"level,omitempty"`
}

// AdjustReputationRequest carries a manual reputation correction.
type AdjustReputationRequest struct {
	Delta int `json:"delta" binding:"required"`
}

// UserQuery mirrors supported user listing filters.
type UserQuery struct {
	IsAdmin     *bool  `form:"is_admin"`
	IsModerator *bool  `form:"is_moderator"`
	IsActive    *bool  `form:"is_active"`
	Faculty     string `form:"faculty"`
	Search      string `form:"search"`
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
	SortBy      string `form:"sort_by"`
	SortOrder   string `form:"sort_order"`
}

// UserResponse is the serialized account with its derived standing flag.
type UserResponse struct {
	models.User
	IsVerifiedUploader bool `json:"is_verified_uploader"`
}

// NewUserResponse wraps a model with its derived verified-uploader flag.
func NewUserResponse(u models.User) UserResponse {
	return UserResponse{User: u, IsVerifiedUploader: u.IsVerifiedUploader()}
}

// NewUserResponses maps a slice of models.
func NewUserResponses(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserResponse(u))
	}
	return out
}
