// Package analytics computes CRM, dashboard and agent performance figures.
package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/leadlifecycle"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/session"
	"gorm.io/gorm"
)

const (
	dashboardDays    = 14
	recentLeads      = 5
	recentActivities = 10
)

var closed = []schema.LeadStatus{schema.StatusWon, schema.StatusLost}

// Service handles analytics operations
type Service struct {
	db        *gorm.DB
	lifecycle *leadlifecycle.Service
	now       func() time.Time
}

// NewService creates a new analytics service
func NewService(db *gorm.DB, lifecycle *leadlifecycle.Service) *Service {
	if lifecycle == nil {
		lifecycle = leadlifecycle.NewService(db)
	}
	return &Service{db: db, lifecycle: lifecycle, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) leads(ctx context.Context, owner *uint) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&schema.Lead{})
	if owner != nil {
		q = q.Where("leads.assigned_to_id = ?", *owner)
	}
	return q
}

func count(q *gorm.DB) (int64, error) {
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// rate returns part/whole as a percentage with one decimal.
func rate(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return round1(float64(part) * 100 / float64(whole))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func (s *Service) pipeline(ctx context.Context, owner *uint) ([]models.StatusCount, map[schema.LeadStatus]int64, error) {
	counts, err := s.lifecycle.StatusCounts(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	out := make([]models.StatusCount, 0, len(leadlifecycle.Pipeline))
	for _, st := range leadlifecycle.Pipeline {
		out = append(out, models.StatusCount{Status: st, Count: counts[st]})
	}
	return out, counts, nil
}

func (s *Service) countBy(ctx context.Context, owner *uint, column string) (map[string]int64, error) {
	var rows []struct {
		Bucket string
		Count  int64
	}
	err := s.leads(ctx, owner).
		Select(column + " AS bucket, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count leads by %s: %w", column, err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Bucket] = r.Count
	}
	return out, nil
}

// CRM summarises the leads the actor may see. Agents only see their own.
func (s *Service) CRM(ctx context.Context, actor session.Identity) (*models.CRMStats, error) {
	owner := actor.OwnerScope()
	now := s.now()
	out := &models.CRMStats{}

	pipeline, counts, err := s.pipeline(ctx, owner)
	if err != nil {
		return nil, err
	}
	out.Pipeline = pipeline
	for _, n := range counts {
		out.TotalLeads += n
	}
	won, lost := counts[schema.StatusWon], counts[schema.StatusLost]
	out.OpenLeads = out.TotalLeads - won - lost
	out.ConversionRate = rate(won, won+lost)

	if out.NewThisWeek, err = count(s.leads(ctx, owner).Where("created_at >= ?", now.AddDate(0, 0, -7))); err != nil {
		return nil, fmt.Errorf("failed to count weekly leads: %w", err)
	}
	if out.NewThisMonth, err = count(s.leads(ctx, owner).Where("created_at >= ?", now.AddDate(0, 0, -30))); err != nil {
		return nil, fmt.Errorf("failed to count monthly leads: %w", err)
	}
	out.HighPriority, err = count(s.leads(ctx, owner).
		Where("urgency IN ? AND status NOT IN ?", []schema.Urgency{schema.UrgencyHigh, schema.UrgencyCritical}, closed))
	if err != nil {
		return nil, fmt.Errorf("failed to count priority leads: %w", err)
	}
	if owner == nil {
		n, err := count(s.leads(ctx, nil).Where("assigned_to_id IS NULL"))
		if err != nil {
			return nil, fmt.Errorf("failed to count unassigned leads: %w", err)
		}
		out.Unassigned = &n
	}

	var avg struct{ Avg float64 }
	if err := s.leads(ctx, owner).Select("COALESCE(AVG(score), 0) AS avg").Scan(&avg).Error; err != nil {
		return nil, fmt.Errorf("failed to average scores: %w", err)
	}
	out.AverageScore = round1(avg.Avg)

	if out.BySource, err = s.countBy(ctx, owner, "source"); err != nil {
		return nil, err
	}
	if out.ByUrgency, err = s.countBy(ctx, owner, "urgency"); err != nil {
		return nil, err
	}
	return out, nil
}

// Dashboard builds the landing page figures. Admins also get the listing
// summary and the agent workloads.
func (s *Service) Dashboard(ctx context.Context, actor session.Identity) (*models.DashboardStats, error) {
	owner := actor.OwnerScope()
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := &models.DashboardStats{}

	pipeline, counts, err := s.pipeline(ctx, owner)
	if err != nil {
		return nil, err
	}
	out.Pipeline = pipeline
	for _, n := range counts {
		out.TotalLeads += n
	}
	out.OpenLeads = out.TotalLeads - counts[schema.StatusWon] - counts[schema.StatusLost]

	if out.NewToday, err = count(s.leads(ctx, owner).Where("created_at >= ?", today)); err != nil {
		return nil, fmt.Errorf("failed to count new leads: %w", err)
	}
	out.WonThisMonth, err = count(s.leads(ctx, owner).
		Where("status = ? AND status_changed_at >= ?", schema.StatusWon, monthStart))
	if err != nil {
		return nil, fmt.Errorf("failed to count won leads: %w", err)
	}
	err = s.db.WithContext(ctx).Model(&schema.Notification{}).
		Where("user_id = ? AND is_read = ?", actor.ID, false).
		Count(&out.UnreadNotifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	if out.LeadsByDay, err = s.leadsByDay(ctx, owner, today, dashboardDays); err != nil {
		return nil, err
	}

	out.RecentLeads = []schema.Lead{}
	err = s.leads(ctx, owner).Preload("AssignedTo").
		Order("created_at DESC").Order("id DESC").
		Limit(recentLeads).Find(&out.RecentLeads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent leads: %w", err)
	}

	out.RecentActivities = []schema.LeadActivity{}
	aq := s.db.WithContext(ctx).Model(&schema.LeadActivity{}).Preload("User").
		Joins("JOIN leads ON leads.id = lead_activities.lead_id AND leads.deleted_at IS NULL")
	if owner != nil {
		aq = aq.Where("leads.assigned_to_id = ?", *owner)
	}
	err = aq.Order("lead_activities.created_at DESC").Order("lead_activities.id DESC").
		Limit(recentActivities).Find(&out.RecentActivities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent activities: %w", err)
	}

	if actor.IsAdmin() {
		props := &models.PropertySummary{}
		pq := func() *gorm.DB { return s.db.WithContext(ctx).Model(&schema.Property{}) }
		if props.Total, err = count(pq()); err != nil {
			return nil, fmt.Errorf("failed to count properties: %w", err)
		}
		if props.Active, err = count(pq().Where("is_active = ?", true)); err != nil {
			return nil, fmt.Errorf("failed to count properties: %w", err)
		}
		if props.Featured, err = count(pq().Where("is_active = ? AND is_featured = ?", true, true)); err != nil {
			return nil, fmt.Errorf("failed to count properties: %w", err)
		}
		out.Properties = props

		if out.Agents, err = s.workloads(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// leadsByDay buckets the leads of the last days days, ending today, oldest first.
func (s *Service) leadsByDay(ctx context.Context, owner *uint, today time.Time, days int) ([]models.DailyCount, error) {
	since := today.AddDate(0, 0, -(days - 1))
	var created []time.Time
	err := s.leads(ctx, owner).Where("created_at >= ?", since).Pluck("created_at", &created).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lead dates: %w", err)
	}

	byDay := make(map[string]int64, days)
	for _, t := range created {
		byDay[t.UTC().Format(time.DateOnly)]++
	}
	out := make([]models.DailyCount, 0, days)
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		out = append(out, models.DailyCount{Date: key, Count: byDay[key]})
	}
	return out, nil
}

func (s *Service) workloads(ctx context.Context) ([]models.AgentSummary, error) {
	var out []models.AgentSummary
	err := s.db.WithContext(ctx).Model(&schema.User{}).
		Joins("LEFT JOIN leads ON leads.assigned_to_id = users.id AND leads.deleted_at IS NULL AND leads.status NOT IN ?", closed).
		Select("users.id, users.full_name, users.email, users.phone, users.is_active, users.max_leads, COUNT(leads.id) AS open_leads").
		Where("users.role = ? AND users.is_active = ?", schema.RoleAgent, true).
		Group("users.id, users.full_name, users.email, users.phone, users.is_active, users.max_leads").
		Order("open_leads DESC").Order("users.full_name ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent workloads: %w", err)
	}
	return out, nil
}

// Agents reports every agent's pipeline performance, best converters first.
func (s *Service) Agents(ctx context.Context) ([]models.AgentStats, error) {
	var rows []models.AgentStats
	err := s.db.WithContext(ctx).Model(&schema.User{}).
		Joins("LEFT JOIN leads ON leads.assigned_to_id = users.id AND leads.deleted_at IS NULL").
		Select(`users.id, users.full_name, users.email, users.is_active, users.max_leads,
			COUNT(leads.id) AS total_leads,
			COALESCE(SUM(CASE WHEN leads.status IN ('won', 'lost') THEN 0 WHEN leads.id IS NULL THEN 0 ELSE 1 END), 0) AS open_leads,
			COALESCE(SUM(CASE WHEN leads.status = 'won' THEN 1 ELSE 0 END), 0) AS won_leads,
			COALESCE(SUM(CASE WHEN leads.status = 'lost' THEN 1 ELSE 0 END), 0) AS lost_leads,
			COALESCE(AVG(leads.score), 0) AS average_score`).
		Where("users.role = ?", schema.RoleAgent).
		Group("users.id, users.full_name, users.email, users.is_active, users.max_leads").
		Order("users.full_name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute agent stats: %w", err)
	}

	var acts []struct {
		UserID uint
		Count  int64
	}
	err = s.db.WithContext(ctx).Model(&schema.LeadActivity{}).
		Select("user_id, COUNT(*) AS count").
		Where("user_id IS NOT NULL AND created_at >= ?", s.now().AddDate(0, 0, -30)).
		Group("user_id").
		Scan(&acts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count agent activities: %w", err)
	}
	activity := make(map[uint]int64, len(acts))
	for _, a := range acts {
		activity[a.UserID] = a.Count
	}

	for i := range rows {
		r := &rows[i]
		r.AverageScore = round1(r.AverageScore)
		r.ConversionRate = rate(r.WonLeads, r.WonLeads+r.LostLeads)
		r.Utilization = rate(r.OpenLeads, int64(r.MaxLeads))
		r.Activities30d = activity[r.ID]
	}
	if rows == nil {
		rows = []models.AgentStats{}
	}
	return rows, nil
}
