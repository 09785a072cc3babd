package models

import "time"

// DemandRequest describes what a lead is looking for
type DemandRequest struct {
	PropertyType string   `json:"property_type" validate:"omitempty,oneof=apartment house villa land commercial office studio"`
	Bedrooms     int      `json:"bedrooms" validate:"gte=0,lte=50"`
	BudgetMin    *float64 `json:"budget_min" validate:"omitempty,gte=0"`
	BudgetMax    *float64 `json:"budget_max" validate:"omitempty,gte=0"`
	AreaMin      float64  `json:"area_min" validate:"gte=0"`
	AreaMax      float64  `json:"area_max" validate:"gte=0"`
	Districts    []string `json:"districts" validate:"omitempty,max=20,dive,max=120"`
	Comment      string   `json:"comment" validate:"omitempty,max=2000" sanitize:"rich"`
}

// LeadCreateRequest represents a manual lead entry
type LeadCreateRequest struct {
	FullName        string         `json:"full_name" validate:"required,min=2,max=120"`
	Email           string         `json:"email" validate:"omitempty,email,max=255"`
	Phone           string         `json:"phone" validate:"omitempty,phone"`
	City            string         `json:"city" validate:"omitempty,max=120"`
	Message         string         `json:"message" validate:"omitempty,max=5000" sanitize:"rich"`
	TransactionType string         `json:"transaction_type" validate:"omitempty,oneof=rent sale"`
	PropertyType    string         `json:"property_type" validate:"omitempty,oneof=apartment house villa land commercial office studio"`
	BudgetMin       *float64       `json:"budget_min" validate:"omitempty,gte=0"`
	BudgetMax       *float64       `json:"budget_max" validate:"omitempty,gte=0"`
	Status          string         `json:"status" validate:"omitempty,oneof=new contacted qualified viewing negotiating won lost"`
	Urgency         string         `json:"urgency" validate:"omitempty,oneof=low medium high critical"`
	Source          string         `json:"source" validate:"omitempty,oneof=website_form chatbot referral manual phone social import"`
	PropertyID      *uint          `json:"property_id"`
	AssignedToID    *uint          `json:"assigned_to_id"`
	Demand          *DemandRequest `json:"demand"`
}

// LeadUpdateRequest represents a partial lead update
type LeadUpdateRequest struct {
	FullName        *string        `json:"full_name" validate:"omitempty,min=2,max=120"`
	Email           *string        `json:"email" validate:"omitempty,email,max=255"`
	Phone           *string        `json:"phone" validate:"omitempty,phone"`
	City            *string        `json:"city" validate:"omitempty,max=120"`
	Message         *string        `json:"message" validate:"omitempty,max=5000" sanitize:"rich"`
	TransactionType *string        `json:"transaction_type" validate:"omitempty,oneof=rent sale"`
	PropertyType    *string        `json:"property_type" validate:"omitempty,oneof=apartment house villa land commercial office studio"`
	BudgetMin       *float64       `json:"budget_min" validate:"omitempty,gte=0"`
	BudgetMax       *float64       `json:"budget_max" validate:"omitempty,gte=0"`
	Status          *string        `json:"status" validate:"omitempty,oneof=new contacted qualified viewing negotiating won lost"`
	Urgency         *string        `json:"urgency" validate:"omitempty,oneof=low medium high critical"`
	Source          *string        `json:"source" validate:"omitempty,oneof=website_form chatbot referral manual phone social import"`
	PropertyID      *uint          `json:"property_id"`
	AssignedToID    *uint          `json:"assigned_to_id"`
	Unassign        bool           `json:"unassign"`
	Demand          *DemandRequest `json:"demand"`
	// Clear names nullable fields to reset. It wins over a value sent for
	// the same field.
	Clear []string `json:"clear" validate:"omitempty,max=3,dive,oneof=budget_min budget_max property_id"`
}

// LeadListQuery holds list filters, pagination and sorting for leads
type LeadListQuery struct {
	Status          string `query:"status" validate:"omitempty,oneof=new contacted qualified viewing negotiating won lost"`
	Urgency         string `query:"urgency" validate:"omitempty,oneof=low medium high critical"`
	Source          string `query:"source" validate:"omitempty,oneof=website_form chatbot referral manual phone social import"`
	AssignedTo      string `query:"assigned_to" validate:"omitempty,max=20"`
	Search          string `query:"search" validate:"omitempty,max=120"`
	MinScore        *int   `query:"min_score" validate:"omitempty,gte=0,lte=100"`
	MaxScore        *int   `query:"max_score" validate:"omitempty,gte=0,lte=100"`
	City            string `query:"city" validate:"omitempty,max=120"`
	TransactionType string `query:"transaction_type" validate:"omitempty,oneof=rent sale"`
	Page            int    `query:"page" validate:"omitempty,min=1"`
	Limit           int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Sort            string `query:"sort" validate:"omitempty,oneof=created_at updated_at score urgency status full_name"`
	Order           string `query:"order" validate:"omitempty,oneof=asc desc"`
}

// ActivityRequest appends an activity to a lead. When type is task the
// Task fields are required.
type ActivityRequest struct {
	Type        string         `json:"type" validate:"required,oneof=note call email meeting task"`
	Title       string         `json:"title" validate:"required,min=1,max=200"`
	Description string         `json:"description" validate:"omitempty,max=5000" sanitize:"rich"`
	DueDate     *time.Time     `json:"due_date"`
	Priority    string         `json:"priority" validate:"omitempty,oneof=low medium high"`
	Metadata    map[string]any `json:"metadata"`
}

// TaskRequest is the task schema applied to task activities
type TaskRequest struct {
	Title       string     `json:"title" validate:"required,min=3,max=200"`
	Description string     `json:"description" validate:"omitempty,max=5000" sanitize:"rich"`
	DueDate     *time.Time `json:"due_date" validate:"required"`
	Priority    string     `json:"priority" validate:"required,oneof=low medium high"`
}

// Task extracts the task view of an activity request
func (r *ActivityRequest) Task() TaskRequest {
	return TaskRequest{Title: r.Title, Description: r.Description, DueDate: r.DueDate, Priority: r.Priority}
}

// StatusChangeRequest moves a lead along the pipeline
type StatusChangeRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted qualified viewing negotiating won lost"`
	Reason string `json:"reason" validate:"omitempty,max=1000"`
}

// NoteRequest adds a note to a lead
type NoteRequest struct {
	Content string `json:"content" validate:"required,min=1,max=5000" sanitize:"rich"`
}

// ContactFormRequest is a public website enquiry
type ContactFormRequest struct {
	Name            string   `json:"name" validate:"required,min=2,max=120"`
	Email           string   `json:"email" validate:"required,email,max=255"`
	Phone           string   `json:"phone" validate:"omitempty,phone"`
	City            string   `json:"city" validate:"omitempty,max=120"`
	Message         string   `json:"message" validate:"required,min=10,max=5000" sanitize:"rich"`
	TransactionType string   `json:"transaction_type" validate:"omitempty,oneof=rent sale"`
	PropertyID      *uint    `json:"property_id"`
	BudgetMin       *float64 `json:"budget_min" validate:"omitempty,gte=0"`
	BudgetMax       *float64 `json:"budget_max" validate:"omitempty,gte=0"`
}

// ChatRequest is one visitor message to the chatbot
type ChatRequest struct {
	SessionLeadID *uint  `json:"session_lead_id"`
	Name          string `json:"name" validate:"omitempty,min=2,max=120"`
	Email         string `json:"email" validate:"omitempty,email,max=255"`
	Phone         string `json:"phone" validate:"omitempty,phone"`
	Message       string `json:"message" validate:"required,min=1,max=2000"`
}

// ChatResponse carries the assistant reply and the lead the conversation is stored on
type ChatResponse struct {
	LeadID uint   `json:"lead_id"`
	Reply  string `json:"reply"`
}

// ContactResponse acknowledges a contact form submission
type ContactResponse struct {
	Success bool   `json:"success"`
	LeadID  uint   `json:"lead_id"`
	Message string `json:"message"`
}
