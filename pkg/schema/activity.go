package schema

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityType classifies lead activity rows.
type ActivityType string

const (
	ActivityCreated      ActivityType = "created"
	ActivityStatusChange ActivityType = "status_change"
	ActivityNote         ActivityType = "note"
	ActivityCall         ActivityType = "call"
	ActivityEmail        ActivityType = "email"
	ActivityMeeting      ActivityType = "meeting"
	ActivityTask         ActivityType = "task"
	ActivityAssignment   ActivityType = "assignment"
	ActivityChat         ActivityType = "chat"
)

// LeadActivity is an append-only event on a lead. Rows are never updated.
type LeadActivity struct {
	ID          uint              `gorm:"primarykey" json:"id"`
	LeadID      uint              `gorm:"index;not null" json:"lead_id"`
	Type        ActivityType      `gorm:"type:varchar(32);not null" json:"type"`
	Title       string            `gorm:"type:varchar(200);not null" json:"title"`
	Description string            `gorm:"type:text" json:"description,omitempty"`
	UserID      *uint             `gorm:"index" json:"user_id,omitempty"`
	User        *User             `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"index" json:"created_at"`
}
