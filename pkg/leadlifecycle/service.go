package leadlifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Pipeline lists the lead statuses in funnel order. Any status may follow
// any other; the order only drives reporting.
var Pipeline = []schema.LeadStatus{
	schema.StatusNew,
	schema.StatusContacted,
	schema.StatusQualified,
	schema.StatusViewing,
	schema.StatusNegotiating,
	schema.StatusWon,
	schema.StatusLost,
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s schema.LeadStatus) bool {
	return Stage(s) >= 0
}

// Stage returns the position of s in Pipeline, or -1.
func Stage(s schema.LeadStatus) int {
	for i, p := range Pipeline {
		if p == s {
			return i
		}
	}
	return -1
}

// Service records status transitions and the activity trail of leads.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates a new lead lifecycle service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Transition describes a status change that was applied.
type Transition struct {
	LeadID uint              `json:"lead_id"`
	From   schema.LeadStatus `json:"from"`
	To     schema.LeadStatus `json:"to"`
	At     time.Time         `json:"at"`
}

// StatusChangeTitle is the activity title for a transition.
func StatusChangeTitle(from, to schema.LeadStatus) string {
	return fmt.Sprintf("Status changed from %s to %s", from, to)
}

// ApplyTransition sets l.Status to to inside tx and appends a status_change
// activity. It returns nil when the status is unchanged.
func (s *Service) ApplyTransition(tx *gorm.DB, l *schema.Lead, to schema.LeadStatus, actorID *uint, reason string) (*Transition, error) {
	if !ValidStatus(to) {
		return nil, domain.NewValidationError("Validation failed", domain.FieldError{
			Field: "status", Message: "is not a valid status", Code: "invalid_enum",
		})
	}
	if l.Status == to {
		return nil, nil
	}

	from := l.Status
	at := s.now()

	if err := tx.Model(&schema.Lead{}).Where("id = ?", l.ID).
		Updates(map[string]any{"status": to, "status_changed_at": at}).Error; err != nil {
		return nil, fmt.Errorf("failed to update lead status: %w", err)
	}

	meta := datatypes.JSONMap{"from": string(from), "to": string(to)}
	if reason != "" {
		meta["reason"] = reason
	}
	activity := &schema.LeadActivity{
		LeadID:      l.ID,
		Type:        schema.ActivityStatusChange,
		Title:       StatusChangeTitle(from, to),
		Description: reason,
		UserID:      actorID,
		Metadata:    meta,
	}
	if err := tx.Create(activity).Error; err != nil {
		return nil, fmt.Errorf("failed to create status history: %w", err)
	}

	l.Status = to
	l.StatusChangedAt = at
	return &Transition{LeadID: l.ID, From: from, To: to, At: at}, nil
}

// ChangeStatus loads the lead and applies a transition in its own transaction.
// ownerID restricts the lookup to leads assigned to that user.
func (s *Service) ChangeStatus(ctx context.Context, leadID uint, to schema.LeadStatus, actorID, ownerID *uint, reason string) (*schema.Lead, *Transition, error) {
	var (
		l  schema.Lead
		tr *Transition
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("id = ?", leadID)
		if ownerID != nil {
			q = q.Where("assigned_to_id = ?", *ownerID)
		}
		if err := q.First(&l).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("Lead")
			}
			return fmt.Errorf("failed to fetch lead: %w", err)
		}
		var err error
		tr, err = s.ApplyTransition(tx, &l, to, actorID, reason)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &l, tr, nil
}

// RecordTx appends an activity to a lead inside tx. Activities are never
// updated.
func (s *Service) RecordTx(tx *gorm.DB, activity *schema.LeadActivity) error {
	if activity.LeadID == 0 {
		return domain.NewBadRequestError("activity requires a lead")
	}
	if err := tx.Create(activity).Error; err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// Activities returns the trail of a lead, newest first, with actors loaded.
func (s *Service) Activities(ctx context.Context, leadID uint, limit int) ([]schema.LeadActivity, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []schema.LeadActivity
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("lead_id = ?", leadID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activities: %w", err)
	}
	return out, nil
}

// History returns only the status changes of a lead, newest first.
func (s *Service) History(ctx context.Context, leadID uint) ([]schema.LeadActivity, error) {
	var out []schema.LeadActivity
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("lead_id = ? AND type = ?", leadID, schema.ActivityStatusChange).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status history: %w", err)
	}
	return out, nil
}

// StatusCounts returns the number of leads in every pipeline stage. Stages
// without leads are reported as zero.
func (s *Service) StatusCounts(ctx context.Context, ownerID *uint) (map[schema.LeadStatus]int64, error) {
	type row struct {
		Status schema.LeadStatus
		Count  int64
	}
	var rows []row

	q := s.db.WithContext(ctx).Model(&schema.Lead{}).Select("status, COUNT(*) AS count").Group("status")
	if ownerID != nil {
		q = q.Where("assigned_to_id = ?", *ownerID)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count leads by status: %w", err)
	}

	counts := make(map[schema.LeadStatus]int64, len(Pipeline))
	for _, st := range Pipeline {
		counts[st] = 0
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
