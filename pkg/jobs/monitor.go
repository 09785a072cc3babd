package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/cache"
	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/jordanlanch/estatecrm/pkg/metrics"
	"github.com/jordanlanch/estatecrm/pkg/schema"
)

const (
	remindedTTL  = 24 * time.Hour
	listedLeads  = 5
	reminderType = schema.NotificationReminder
)

// StaleFinder returns assigned leads still in status new since before cutoff.
type StaleFinder interface {
	Stale(ctx context.Context, cutoff time.Time) ([]schema.Lead, error)
}

// Purger removes read notifications older than cutoff.
type Purger interface {
	PurgeRead(ctx context.Context, cutoff time.Time) (int64, error)
}

// Options configures a LeadMonitor.
type Options struct {
	StaleAfter time.Duration
	Retention  time.Duration
}

// LeadMonitor runs the CRM housekeeping work triggered by the scheduler.
type LeadMonitor struct {
	leads         StaleFinder
	notifications Purger
	notifier      domain.Notifier
	mailer        domain.Mailer
	cache         *cache.Client
	metrics       *metrics.Metrics
	logger        logger.Logger
	opts          Options
	now           func() time.Time
}

// NewLeadMonitor creates a new lead monitor. cache, mailer and m may be nil.
func NewLeadMonitor(leads StaleFinder, notifications Purger, notifier domain.Notifier, mailer domain.Mailer,
	c *cache.Client, m *metrics.Metrics, log logger.Logger, opts Options) *LeadMonitor {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 48 * time.Hour
	}
	if opts.Retention <= 0 {
		opts.Retention = 30 * 24 * time.Hour
	}
	return &LeadMonitor{
		leads:         leads,
		notifications: notifications,
		notifier:      notifier,
		mailer:        mailer,
		cache:         c,
		metrics:       m,
		logger:        logger.OrNop(log),
		opts:          opts,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RemindStaleLeads sends every agent one reminder listing their leads that
// have waited longer than StaleAfter for a first contact. A lead is reminded
// at most once per day. It returns the number of agents reminded.
func (m *LeadMonitor) RemindStaleLeads(ctx context.Context) (int, error) {
	stale, err := m.leads.Stale(ctx, m.now().Add(-m.opts.StaleAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to find stale leads: %w", err)
	}

	byAgent := make(map[uint][]schema.Lead)
	agents := make(map[uint]*schema.User)
	for _, l := range stale {
		if l.AssignedToID == nil || m.reminded(ctx, l.ID) {
			continue
		}
		byAgent[*l.AssignedToID] = append(byAgent[*l.AssignedToID], l)
		if l.AssignedTo != nil {
			agents[*l.AssignedToID] = l.AssignedTo
		}
	}

	ids := make([]uint, 0, len(byAgent))
	for id := range byAgent {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	sent := 0
	for _, id := range ids {
		leads := byAgent[id]
		n := &schema.Notification{
			UserID:  id,
			LeadID:  &leads[0].ID,
			Type:    reminderType,
			Title:   reminderTitle(len(leads)),
			Message: reminderMessage(leads),
		}
		if err := m.notifier.Notify(ctx, n); err != nil {
			m.logger.Error("failed to send stale lead reminder", "user_id", id, "error", err)
			continue
		}
		if agent := agents[id]; agent != nil && m.mailer != nil && agent.IsActive {
			if err := m.mailer.SendStaleLeadReminder(ctx, agent, leads); err != nil {
				m.logger.Warn("failed to email stale lead reminder", "user_id", id, "error", err)
			}
		}
		for _, l := range leads {
			m.markReminded(ctx, l.ID)
		}
		sent++
	}

	m.logger.Info("stale lead reminders sent", "stale", len(stale), "agents", sent)
	return sent, nil
}

func reminderTitle(n int) string {
	if n == 1 {
		return "1 lead is waiting for first contact"
	}
	return fmt.Sprintf("%d leads are waiting for first contact", n)
}

func reminderMessage(leads []schema.Lead) string {
	names := make([]string, 0, listedLeads)
	for i, l := range leads {
		if i == listedLeads {
			names = append(names, fmt.Sprintf("and %d more", len(leads)-listedLeads))
			break
		}
		names = append(names, l.FullName)
	}
	return "Still new: " + strings.Join(names, ", ")
}

func remindedKey(leadID uint) string {
	return fmt.Sprintf("jobs:reminded:%d", leadID)
}

func (m *LeadMonitor) reminded(ctx context.Context, leadID uint) bool {
	if m.cache == nil {
		return false
	}
	ok, err := m.cache.Exists(ctx, remindedKey(leadID))
	if err != nil {
		m.logger.Warn("failed to check reminder status", "lead_id", leadID, "error", err)
		return false
	}
	return ok
}

func (m *LeadMonitor) markReminded(ctx context.Context, leadID uint) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Set(ctx, remindedKey(leadID), m.now().Unix(), remindedTTL); err != nil {
		m.logger.Warn("failed to mark lead reminded", "lead_id", leadID, "error", err)
	}
}

// PurgeNotifications deletes read notifications older than Retention.
func (m *LeadMonitor) PurgeNotifications(ctx context.Context) (int64, error) {
	n, err := m.notifications.PurgeRead(ctx, m.now().Add(-m.opts.Retention))
	if err != nil {
		return 0, err
	}
	m.logger.Info("read notifications purged", "count", n)
	return n, nil
}

func lockKey(job string) string {
	return "jobs:lock:" + job
}

// acquire takes a cluster-wide lock for job so that only one replica runs it.
// Without a cache every caller wins.
func (m *LeadMonitor) acquire(ctx context.Context, job string, ttl time.Duration) bool {
	if m.cache == nil {
		return true
	}
	ok, err := m.cache.Redis.SetNX(ctx, lockKey(job), m.now().Unix(), ttl).Result()
	if err != nil {
		m.logger.Warn("failed to take job lock, running anyway", "job", job, "error", err)
		return true
	}
	return ok
}

func (m *LeadMonitor) release(ctx context.Context, job string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Delete(ctx, lockKey(job)); err != nil {
		m.logger.Warn("failed to release job lock", "job", job, "error", err)
	}
}

// Run executes job under its lock and records the outcome.
func (m *LeadMonitor) Run(ctx context.Context, job string, ttl time.Duration, fn func(context.Context) error) {
	if !m.acquire(ctx, job, ttl) {
		m.logger.Info("job already running elsewhere, skipping", "job", job)
		m.metrics.RecordJobRun(job, "skipped")
		return
	}
	defer m.release(context.WithoutCancel(ctx), job)

	start := time.Now()
	if err := fn(ctx); err != nil {
		m.logger.Error("job failed", "job", job, "duration", time.Since(start), "error", err)
		m.metrics.RecordJobRun(job, "failed")
		return
	}
	m.logger.Info("job completed", "job", job, "duration", time.Since(start))
	m.metrics.RecordJobRun(job, "success")
}
