package models

import "github.com/jordanlanch/estatecrm/pkg/schema"

// StatusCount is the number of leads in one pipeline stage
type StatusCount struct {
	Status schema.LeadStatus `json:"status"`
	Count  int64             `json:"count"`
}

// DailyCount is the number of leads created on one day (YYYY-MM-DD, UTC)
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// CRMStats summarises the leads visible to the caller
type CRMStats struct {
	TotalLeads     int64            `json:"total_leads"`
	OpenLeads      int64            `json:"open_leads"`
	NewThisWeek    int64            `json:"new_this_week"`
	NewThisMonth   int64            `json:"new_this_month"`
	HighPriority   int64            `json:"high_priority"`
	Unassigned     *int64           `json:"unassigned,omitempty"`
	AverageScore   float64          `json:"average_score"`
	ConversionRate float64          `json:"conversion_rate"`
	Pipeline       []StatusCount    `json:"pipeline"`
	BySource       map[string]int64 `json:"by_source"`
	ByUrgency      map[string]int64 `json:"by_urgency"`
}

// PropertySummary is the listing block of the admin dashboard
type PropertySummary struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Featured int64 `json:"featured"`
}

// DashboardStats is the landing page payload of the CRM
type DashboardStats struct {
	TotalLeads          int64                 `json:"total_leads"`
	OpenLeads           int64                 `json:"open_leads"`
	NewToday            int64                 `json:"new_today"`
	WonThisMonth        int64                 `json:"won_this_month"`
	UnreadNotifications int64                 `json:"unread_notifications"`
	Pipeline            []StatusCount         `json:"pipeline"`
	LeadsByDay          []DailyCount          `json:"leads_by_day"`
	RecentLeads         []schema.Lead         `json:"recent_leads"`
	RecentActivities    []schema.LeadActivity `json:"recent_activities"`
	Properties          *PropertySummary      `json:"properties,omitempty"`
	Agents              []AgentSummary        `json:"agents,omitempty"`
}

// AgentStats is one agent's performance
type AgentStats struct {
	ID             uint    `json:"id"`
	FullName       string  `json:"full_name"`
	Email          string  `json:"email"`
	IsActive       bool    `json:"is_active"`
	MaxLeads       int     `json:"max_leads"`
	TotalLeads     int64   `json:"total_leads"`
	OpenLeads      int64   `json:"open_leads"`
	WonLeads       int64   `json:"won_leads"`
	LostLeads      int64   `json:"lost_leads"`
	AverageScore   float64 `json:"average_score"`
	ConversionRate float64 `json:"conversion_rate"`
	Utilization    float64 `json:"utilization"`
	Activities30d  int64   `json:"activities_30d"`
}
