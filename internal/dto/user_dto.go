package dto

// UserFilter is bound from the query string of GET /api/users.
type UserFilter struct {
	Role   string `form:"role"   validate:"omitempty,oneof=ADMIN CUSTOMER admin customer"`
	Search string `form:"search" validate:"omitempty,max=100"`
}

type UserResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Role        string  `json:"role"`
	PromotedBy  *string `json:"promoted_by,omitempty"`
	PromotedAt  *string `json:"promoted_at,omitempty"`
	LastLoginAt *string `json:"last_login_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type RoleChangeResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type UserStatsResponse struct {
	TotalUsers    int64 `json:"total_users"`
	AdminCount    int64 `json:"admin_count"`
	CustomerCount int64 `json:"customer_count"`
	RecentSignups int64 `json:"recent_signups"`
}
