package models

// UserUpdateRequest updates a user. Agents editing themselves may only set
// full_name and phone.
type UserUpdateRequest struct {
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	FullName *string `json:"full_name" validate:"omitempty,min=2,max=120"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin agent"`
	IsActive *bool   `json:"is_active"`
	MaxLeads *int    `json:"max_leads" validate:"omitempty,gte=0,lte=1000"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72" sanitize:"none"`
}

// OnlyProfileFields reports whether the request touches nothing beyond full_name and phone
func (r *UserUpdateRequest) OnlyProfileFields() bool {
	return r.Email == nil && r.Role == nil && r.IsActive == nil && r.MaxLeads == nil && r.Password == nil
}

// UserListQuery filters the user listing
type UserListQuery struct {
	Role     string `query:"role" validate:"omitempty,oneof=admin agent"`
	IsActive *bool  `query:"is_active"`
	Search   string `query:"search" validate:"omitempty,max=120"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// AgentSummary is an agent with its current workload
type AgentSummary struct {
	ID        uint   `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	IsActive  bool   `json:"is_active"`
	MaxLeads  int    `json:"max_leads"`
	OpenLeads int64  `json:"open_leads"`
}

// UserDeleteResponse reports a deleted user and the leads released back to the pool
type UserDeleteResponse struct {
	Success         bool  `json:"success"`
	UnassignedLeads int64 `json:"unassigned_leads"`
}
