package models

import (
	"time"

	"github.com/jordanlanch/estatecrm/pkg/schema"
)

// RegisterRequest represents an admin-issued account creation
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72" sanitize:"none"`
	FullName string `json:"full_name" validate:"required,min=2,max=120"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Role     string `json:"role" validate:"omitempty,oneof=admin agent"`
	MaxLeads *int   `json:"max_leads" validate:"omitempty,gte=0,lte=1000"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required" sanitize:"none"`
}

// PasswordChangeRequest represents a password change by the current user
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required" sanitize:"none"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72,nefield=CurrentPassword" sanitize:"none"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *UserInfo `json:"user"`
}

// UserInfo represents user information in responses
type UserInfo struct {
	ID           uint        `json:"id"`
	Email        string      `json:"email"`
	FullName     string      `json:"full_name"`
	Phone        string      `json:"phone,omitempty"`
	Role         schema.Role `json:"role"`
	IsActive     bool        `json:"is_active"`
	MaxLeads     int         `json:"max_leads"`
	Capabilities []string    `json:"capabilities,omitempty"`
	LastLoginAt  *time.Time  `json:"last_login_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// NewUserInfo converts a stored user into its public shape
func NewUserInfo(u *schema.User) *UserInfo {
	if u == nil {
		return nil
	}
	return &UserInfo{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		Phone:       u.Phone,
		Role:        u.Role,
		IsActive:    u.IsActive,
		MaxLeads:    u.MaxLeads,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}
