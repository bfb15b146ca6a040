package dto

// CreateCourseRequest payload for adding a catalog entry.
type CreateCourseRequest struct {
	Code        string `json:"code" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Faculty     string `json:"faculty" validate:"required"`
	Department  string `json:"department"`
	Level       string `json:"level"`
	CreditHours int    `json:"credit_hours" validate:"omitempty,min=1,max=6"`
	Description string `json:"description"`
}

// UpdateCourseRequest payload for partial course updates.
type UpdateCourseRequest struct {
	Title       *string `json:"title,omitempty"`
	Faculty     *string `json:"faculty,omitempty"`
	Department  *string `json:"department,omitempty"`
	Level       *string `json:"level,omitempty"`
	CreditHours *int    `json:"credit_hours,omitempty" validate:"omitempty,min=1,max=6"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// CourseQuery mirrors supported course listing filters.
type CourseQuery struct {
	Faculty    string `form:"faculty"`
	Department string `form:"department"`
	Level      string `form:"level"`
	Search     string `form:"search"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
	SortBy     string `form:"sort_by"`
	SortOrder  string `form:"sort_order"`
}
