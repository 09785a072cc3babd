package schema

import "time"

// NotificationType classifies notifications.
type NotificationType string

const (
	NotificationNewLead      NotificationType = "new_lead"
	NotificationLeadAssigned NotificationType = "lead_assigned"
	NotificationStatusChange NotificationType = "status_change"
	NotificationReminder     NotificationType = "reminder"
	NotificationSystem       NotificationType = "system"
)

// Notification is a per-user event.
type Notification struct {
	ID        uint             `gorm:"primarykey" json:"id"`
	UserID    uint             `gorm:"index;not null" json:"user_id"`
	User      *User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	LeadID    *uint            `gorm:"index" json:"lead_id,omitempty"`
	Type      NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Title     string           `gorm:"type:varchar(200);not null" json:"title"`
	Message   string           `gorm:"type:text" json:"message,omitempty"`
	IsRead    bool             `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

// All returns every persisted model, in migration order.
func All() []any {
	return []any{
		&User{},
		&Property{},
		&Lead{},
		&LeadActivity{},
		&Notification{},
	}
}
