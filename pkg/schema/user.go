package schema

import "time"

// Role is a user role.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleAgent}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAgent
}

// DefaultMaxLeads is the lead capacity given to new agents.
const DefaultMaxLeads = 50

// User is a CRM account (admin or agent).
type User struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	FullName     string     `gorm:"type:varchar(120);not null" json:"full_name"`
	Phone        string     `gorm:"type:varchar(32)" json:"phone,omitempty"`
	Role         Role       `gorm:"type:varchar(16);not null;default:agent;index" json:"role"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	MaxLeads     int        `gorm:"not null;default:50" json:"max_leads"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
