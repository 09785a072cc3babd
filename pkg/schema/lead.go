package schema

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LeadStatus is a stage in the sales pipeline.
type LeadStatus string

const (
	StatusNew         LeadStatus = "new"
	StatusContacted   LeadStatus = "contacted"
	StatusQualified   LeadStatus = "qualified"
	StatusViewing     LeadStatus = "viewing"
	StatusNegotiating LeadStatus = "negotiating"
	StatusWon         LeadStatus = "won"
	StatusLost        LeadStatus = "lost"
)

// Urgency is a qualitative priority tag on a lead.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Urgencies in ascending order.
var Urgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical}

// LeadSource is the marketing channel a lead came from.
type LeadSource string

const (
	SourceWebsiteForm LeadSource = "website_form"
	SourceChatbot     LeadSource = "chatbot"
	SourceReferral    LeadSource = "referral"
	SourceManual      LeadSource = "manual"
	SourcePhone       LeadSource = "phone"
	SourceSocial      LeadSource = "social"
	SourceImport      LeadSource = "import"
)

// TransactionType is what the lead wants to do.
type TransactionType string

const (
	TransactionRent TransactionType = "rent"
	TransactionSale TransactionType = "sale"
)

// Demand describes what a lead is looking for.
type Demand struct {
	PropertyType string   `json:"property_type,omitempty"`
	Bedrooms     int      `json:"bedrooms,omitempty"`
	BudgetMin    *float64 `json:"budget_min,omitempty"`
	BudgetMax    *float64 `json:"budget_max,omitempty"`
	AreaMin      float64  `json:"area_min,omitempty"`
	AreaMax      float64  `json:"area_max,omitempty"`
	Districts    []string `json:"districts,omitempty"`
	Comment      string   `json:"comment,omitempty"`
}

// LeadNote is a note embedded in the lead row.
type LeadNote struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	AuthorID   uint      `json:"author_id"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatMessage is a chatbot exchange embedded in the lead row.
type ChatMessage struct {
	Role      string    `json:"role"` // user | assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Lead is a prospective client.
type Lead struct {
	ID              uint                             `gorm:"primarykey" json:"id"`
	FullName        string                           `gorm:"type:varchar(120);not null" json:"full_name"`
	Email           string                           `gorm:"type:varchar(255);index" json:"email,omitempty"`
	Phone           string                           `gorm:"type:varchar(32);index" json:"phone,omitempty"`
	City            string                           `gorm:"type:varchar(120);index" json:"city,omitempty"`
	Message         string                           `gorm:"type:text" json:"message,omitempty"`
	TransactionType TransactionType                  `gorm:"type:varchar(16)" json:"transaction_type,omitempty"`
	PropertyType    string                           `gorm:"type:varchar(32)" json:"property_type,omitempty"`
	BudgetMin       *float64                         `json:"budget_min,omitempty"`
	BudgetMax       *float64                         `json:"budget_max,omitempty"`
	Status          LeadStatus                       `gorm:"type:varchar(16);not null;default:new;index" json:"status"`
	Urgency         Urgency                          `gorm:"type:varchar(16);not null;default:medium;index" json:"urgency"`
	Score           int                              `gorm:"not null;default:0;index" json:"score"`
	Source          LeadSource                       `gorm:"type:varchar(32);not null;default:manual;index" json:"source"`
	PropertyID      *uint                            `gorm:"index" json:"property_id,omitempty"`
	AssignedToID    *uint                            `gorm:"index" json:"assigned_to_id,omitempty"`
	AssignedTo      *User                            `gorm:"foreignKey:AssignedToID;constraint:OnDelete:SET NULL" json:"assigned_to,omitempty"`
	Demand          datatypes.JSONType[Demand]       `json:"demand"`
	Notes           datatypes.JSONSlice[LeadNote]    `json:"notes"`
	ChatMessages    datatypes.JSONSlice[ChatMessage] `json:"chat_messages"`
	StatusChangedAt time.Time                        `json:"status_changed_at"`
	Activities      []LeadActivity                   `gorm:"constraint:OnDelete:CASCADE" json:"activities,omitempty"`
	CreatedAt       time.Time                        `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time                        `json:"updated_at"`
	DeletedAt       gorm.DeletedAt                   `gorm:"index" json:"-"`
}

// IsOpen reports whether the lead is still being worked.
func (l *Lead) IsOpen() bool {
	return l.Status != StatusWon && l.Status != StatusLost
}
