package leadassignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Assignment types recorded in activity metadata.
const (
	TypeManual = "manual"
	TypeAuto   = "auto"
)

var closedStatuses = []schema.LeadStatus{schema.StatusWon, schema.StatusLost}

// Service handles lead assignment operations.
type Service struct {
	db *gorm.DB
}

// NewService creates a new lead assignment service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// AssignmentResponse represents a lead assignment.
type AssignmentResponse struct {
	LeadID         uint      `json:"lead_id"`
	LeadName       string    `json:"lead_name"`
	UserID         uint      `json:"user_id"`
	UserName       string    `json:"user_name"`
	UserEmail      string    `json:"-"`
	AssignmentType string    `json:"assignment_type"` // "auto" or "manual"
	Reason         string    `json:"reason,omitempty"`
	AssignedAt     time.Time `json:"assigned_at"`
}

// openLeadsJoin counts open, non-deleted leads per user.
func openLeadsJoin(q *gorm.DB) *gorm.DB {
	return q.Joins("LEFT JOIN leads ON leads.assigned_to_id = users.id AND leads.deleted_at IS NULL AND leads.status NOT IN ?", closedStatuses)
}

// Workloads lists agents with their number of open leads, by name.
func (s *Service) Workloads(ctx context.Context, activeOnly bool) ([]models.AgentSummary, error) {
	var out []models.AgentSummary
	q := openLeadsJoin(s.db.WithContext(ctx).Model(&schema.User{})).
		Select("users.id, users.full_name, users.email, users.phone, users.is_active, users.max_leads, COUNT(leads.id) AS open_leads").
		Where("users.role = ?", schema.RoleAgent)
	if activeOnly {
		q = q.Where("users.is_active = ?", true)
	}
	err := q.Group("users.id, users.full_name, users.email, users.phone, users.is_active, users.max_leads").
		Order("users.full_name ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent workloads: %w", err)
	}
	return out, nil
}

// OpenLeads counts the open leads assigned to userID.
func (s *Service) OpenLeads(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&schema.Lead{}).
		Where("assigned_to_id = ? AND status NOT IN ?", userID, closedStatuses).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count open leads: %w", err)
	}
	return n, nil
}

// PickAgent returns the active agent with the fewest open leads that is still
// below its capacity, or nil when every agent is full. Ties go to the lowest id.
func (s *Service) PickAgent(tx *gorm.DB) (*schema.User, int64, error) {
	var row struct {
		ID        uint
		OpenLeads int64
	}
	res := openLeadsJoin(tx.Model(&schema.User{})).
		Select("users.id, COUNT(leads.id) AS open_leads").
		Where("users.role = ? AND users.is_active = ?", schema.RoleAgent, true).
		Group("users.id, users.max_leads").
		Having("COUNT(leads.id) < users.max_leads").
		Order("open_leads ASC").Order("users.id ASC").
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return nil, 0, fmt.Errorf("failed to select agent: %w", res.Error)
	}
	if res.RowsAffected == 0 || row.ID == 0 {
		return nil, 0, nil
	}

	var u schema.User
	if err := tx.First(&u, row.ID).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch agent: %w", err)
	}
	return &u, row.OpenLeads, nil
}

// Assign sets the assignee of l inside tx and records an assignment activity.
// It returns nil when l is already assigned to userID.
func (s *Service) Assign(tx *gorm.DB, l *schema.Lead, userID uint, actorID *uint, kind, reason string) (*AssignmentResponse, error) {
	var u schema.User
	if err := tx.First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewValidationError("Validation failed", domain.FieldError{
				Field: "assigned_to_id", Message: "user does not exist", Code: "invalid",
			})
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	if !u.IsActive {
		return nil, domain.NewValidationError("Validation failed", domain.FieldError{
			Field: "assigned_to_id", Message: "user is inactive", Code: "invalid",
		})
	}
	if l.AssignedToID != nil && *l.AssignedToID == userID {
		return nil, nil
	}

	if err := tx.Model(&schema.Lead{}).Where("id = ?", l.ID).
		Update("assigned_to_id", userID).Error; err != nil {
		return nil, fmt.Errorf("failed to assign lead: %w", err)
	}

	if kind == "" {
		kind = TypeManual
	}
	meta := datatypes.JSONMap{"user_id": u.ID, "assignment_type": kind}
	if l.AssignedToID != nil {
		meta["previous_user_id"] = *l.AssignedToID
	}
	if reason != "" {
		meta["reason"] = reason
	}
	activity := &schema.LeadActivity{
		LeadID:      l.ID,
		Type:        schema.ActivityAssignment,
		Title:       fmt.Sprintf("Assigned to %s", u.FullName),
		Description: reason,
		UserID:      actorID,
		Metadata:    meta,
	}
	if err := tx.Create(activity).Error; err != nil {
		return nil, fmt.Errorf("failed to record assignment: %w", err)
	}

	l.AssignedToID = &u.ID
	l.AssignedTo = &u
	return &AssignmentResponse{
		LeadID:         l.ID,
		LeadName:       l.FullName,
		UserID:         u.ID,
		UserName:       u.FullName,
		UserEmail:      u.Email,
		AssignmentType: kind,
		Reason:         reason,
		AssignedAt:     activity.CreatedAt,
	}, nil
}

// AutoAssign gives l to the least loaded agent. It returns nil when no agent
// has capacity left.
func (s *Service) AutoAssign(tx *gorm.DB, l *schema.Lead, actorID *uint) (*AssignmentResponse, error) {
	agent, open, err := s.PickAgent(tx)
	if err != nil || agent == nil {
		return nil, err
	}
	return s.Assign(tx, l, agent.ID, actorID, TypeAuto, fmt.Sprintf("least load (agent had %d open leads)", open))
}

// Unassign clears the assignee of l inside tx.
func (s *Service) Unassign(tx *gorm.DB, l *schema.Lead, actorID *uint) error {
	if l.AssignedToID == nil {
		return nil
	}
	prev := *l.AssignedToID
	if err := tx.Model(&schema.Lead{}).Where("id = ?", l.ID).
		Update("assigned_to_id", nil).Error; err != nil {
		return fmt.Errorf("failed to unassign lead: %w", err)
	}
	activity := &schema.LeadActivity{
		LeadID:   l.ID,
		Type:     schema.ActivityAssignment,
		Title:    "Unassigned",
		UserID:   actorID,
		Metadata: datatypes.JSONMap{"previous_user_id": prev},
	}
	if err := tx.Create(activity).Error; err != nil {
		return fmt.Errorf("failed to record unassignment: %w", err)
	}
	l.AssignedToID = nil
	l.AssignedTo = nil
	return nil
}

// UnassignAll clears userID from every lead, soft-deleted ones included.
func (s *Service) UnassignAll(tx *gorm.DB, userID uint) (int64, error) {
	res := tx.Unscoped().Model(&schema.Lead{}).
		Where("assigned_to_id = ?", userID).
		Update("assigned_to_id", nil)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to unassign leads: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// History returns the assignment trail of a lead, newest first.
func (s *Service) History(ctx context.Context, leadID uint) ([]schema.LeadActivity, error) {
	var out []schema.LeadActivity
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("lead_id = ? AND type = ?", leadID, schema.ActivityAssignment).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignment history: %w", err)
	}
	return out, nil
}
