package leadscoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"gorm.io/gorm"
)

// Service recomputes and reports stored lead scores.
type Service struct {
	db *gorm.DB
}

// NewService creates a new lead scoring service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ScoreResponse represents a lead's calculated score.
type ScoreResponse struct {
	LeadID     uint           `json:"lead_id"`
	LeadName   string         `json:"lead_name"`
	TotalScore int            `json:"total_score"`
	MaxScore   int            `json:"max_score"`
	Breakdown  map[string]int `json:"breakdown"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// CalculateScore explains the score of one lead without writing it.
func (s *Service) CalculateScore(ctx context.Context, leadID uint, ownerID *uint) (*ScoreResponse, error) {
	var l schema.Lead
	q := s.db.WithContext(ctx).Where("id = ?", leadID)
	if ownerID != nil {
		q = q.Where("assigned_to_id = ?", *ownerID)
	}
	if err := q.First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Lead")
		}
		return nil, fmt.Errorf("failed to fetch lead: %w", err)
	}

	in := FromLead(&l)
	return &ScoreResponse{
		LeadID:     l.ID,
		LeadName:   l.FullName,
		TotalScore: Score(in),
		MaxScore:   MaxScore,
		Breakdown:  Breakdown(in),
		UpdatedAt:  l.UpdatedAt,
	}, nil
}

// RecalculateAll rewrites the stored score of every lead whose score drifted
// from the current rules, in batches. It returns the number of leads updated.
func (s *Service) RecalculateAll(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 200
	}

	updated := 0
	var batch []schema.Lead
	err := s.db.WithContext(ctx).Model(&schema.Lead{}).
		FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				score := ScoreLead(&batch[i])
				if score == batch[i].Score {
					continue
				}
				if err := s.db.WithContext(ctx).Model(&schema.Lead{}).Where("id = ?", batch[i].ID).
					UpdateColumn("score", score).Error; err != nil {
					return err
				}
				updated++
			}
			return nil
		}).Error
	if err != nil {
		return updated, fmt.Errorf("failed to recalculate scores: %w", err)
	}
	return updated, nil
}

// Distribution buckets lead scores into ranges of 20 points.
func (s *Service) Distribution(ctx context.Context, ownerID *uint) (map[string]int64, error) {
	buckets := []struct {
		label  string
		lo, hi int
	}{
		{"0-19", 0, 19},
		{"20-39", 20, 39},
		{"40-59", 40, 59},
		{"60-79", 60, 79},
		{"80-100", 80, 100},
	}

	out := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		var n int64
		q := s.db.WithContext(ctx).Model(&schema.Lead{}).Where("score BETWEEN ? AND ?", b.lo, b.hi)
		if ownerID != nil {
			q = q.Where("assigned_to_id = ?", *ownerID)
		}
		if err := q.Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to count scores: %w", err)
		}
		out[b.label] = n
	}
	return out, nil
}
