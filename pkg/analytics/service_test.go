package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/database/dbtest"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	svc    *Service
	admin  session.Identity
	alice  *schema.User
	bob    *schema.User
	leadID uint
}

func createTestUser(t *testing.T, db *gorm.DB, email, name string, role schema.Role, maxLeads int) *schema.User {
	u := &schema.User{Email: email, PasswordHash: "x", FullName: name, Role: role, IsActive: true, MaxLeads: maxLeads}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createTestLead(t *testing.T, db *gorm.DB, assignee *uint, status schema.LeadStatus, mods ...func(*schema.Lead)) *schema.Lead {
	l := &schema.Lead{
		FullName:        "Lead",
		Status:          status,
		Urgency:         schema.UrgencyMedium,
		Source:          schema.SourceManual,
		Score:           50,
		AssignedToID:    assignee,
		StatusChangedAt: time.Now().UTC(),
	}
	for _, m := range mods {
		m(l)
	}
	require.NoError(t, db.Create(l).Error)
	return l
}

// setup seeds two agents. Alice: won, lost, new (high, score 80).
// Bob: contacted. Unassigned: one new website lead from 40 days ago.
func setup(t *testing.T) *fixture {
	db := dbtest.Open(t).DB
	f := &fixture{db: db, svc: NewService(db, nil)}
	f.admin = session.NewIdentity(createTestUser(t, db, "admin@example.com", "Admin", schema.RoleAdmin, 50))
	f.alice = createTestUser(t, db, "alice@example.com", "Alice", schema.RoleAgent, 4)
	f.bob = createTestUser(t, db, "bob@example.com", "Bob", schema.RoleAgent, 10)

	createTestLead(t, db, &f.alice.ID, schema.StatusWon, func(l *schema.Lead) { l.Score = 90 })
	createTestLead(t, db, &f.alice.ID, schema.StatusLost, func(l *schema.Lead) { l.Score = 30 })
	open := createTestLead(t, db, &f.alice.ID, schema.StatusNew, func(l *schema.Lead) {
		l.Score = 80
		l.Urgency = schema.UrgencyHigh
	})
	f.leadID = open.ID
	createTestLead(t, db, &f.bob.ID, schema.StatusContacted, func(l *schema.Lead) { l.Source = schema.SourceReferral })
	createTestLead(t, db, nil, schema.StatusNew, func(l *schema.Lead) {
		l.Source = schema.SourceWebsiteForm
		l.CreatedAt = time.Now().UTC().AddDate(0, 0, -40)
	})

	require.NoError(t, db.Create(&schema.LeadActivity{LeadID: open.ID, Type: schema.ActivityCall, Title: "Called", UserID: &f.alice.ID}).Error)
	require.NoError(t, db.Create(&schema.Notification{UserID: f.alice.ID, Type: schema.NotificationReminder, Title: "Ping", Message: "x"}).Error)
	return f
}

func pipelineCount(p []models.StatusCount, st schema.LeadStatus) int64 {
	for _, c := range p {
		if c.Status == st {
			return c.Count
		}
	}
	return -1
}

func TestCRM(t *testing.T) {
	ctx := context.Background()

	t.Run("admin sees every lead", func(t *testing.T) {
		f := setup(t)
		stats, err := f.svc.CRM(ctx, f.admin)
		require.NoError(t, err)

		assert.Equal(t, int64(5), stats.TotalLeads)
		assert.Equal(t, int64(3), stats.OpenLeads)
		assert.Equal(t, int64(4), stats.NewThisWeek)
		assert.Equal(t, int64(4), stats.NewThisMonth)
		assert.Equal(t, int64(1), stats.HighPriority)
		require.NotNil(t, stats.Unassigned)
		assert.Equal(t, int64(1), *stats.Unassigned)
		assert.Equal(t, 50.0, stats.ConversionRate)
		assert.Equal(t, 60.0, stats.AverageScore)
		assert.Len(t, stats.Pipeline, 7)
		assert.Equal(t, int64(2), pipelineCount(stats.Pipeline, schema.StatusNew))
		assert.Equal(t, int64(0), pipelineCount(stats.Pipeline, schema.StatusViewing))
		assert.Equal(t, int64(3), stats.BySource["manual"])
		assert.Equal(t, int64(1), stats.BySource["website_form"])
		assert.Equal(t, int64(1), stats.ByUrgency["high"])
	})

	t.Run("agent is scoped to their own leads", func(t *testing.T) {
		f := setup(t)
		stats, err := f.svc.CRM(ctx, session.NewIdentity(f.bob))
		require.NoError(t, err)

		assert.Equal(t, int64(1), stats.TotalLeads)
		assert.Nil(t, stats.Unassigned)
		assert.Equal(t, 0.0, stats.ConversionRate)
		assert.Equal(t, int64(1), stats.BySource["referral"])
		assert.Zero(t, stats.BySource["manual"])
	})
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()

	t.Run("admin", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.db.Create(&schema.Property{Title: "Flat", Category: "RENT", Type: "apartment", City: "Valencia", IsActive: true, IsFeatured: true}).Error)
		require.NoError(t, f.db.Create(&schema.Property{Title: "Old", Category: "SALE", Type: "house", City: "Madrid", IsActive: false}).Error)

		d, err := f.svc.Dashboard(ctx, f.admin)
		require.NoError(t, err)

		assert.Equal(t, int64(5), d.TotalLeads)
		assert.Equal(t, int64(4), d.NewToday)
		assert.Equal(t, int64(1), d.WonThisMonth)
		assert.Len(t, d.LeadsByDay, dashboardDays)
		assert.Equal(t, int64(4), d.LeadsByDay[len(d.LeadsByDay)-1].Count)
		assert.Len(t, d.RecentLeads, 5)
		require.Len(t, d.RecentActivities, 1)
		assert.Equal(t, "Alice", d.RecentActivities[0].User.FullName)

		require.NotNil(t, d.Properties)
		assert.Equal(t, int64(2), d.Properties.Total)
		assert.Equal(t, int64(1), d.Properties.Active)
		assert.Equal(t, int64(1), d.Properties.Featured)
		require.Len(t, d.Agents, 2)
		assert.Equal(t, "Alice", d.Agents[0].FullName)
		assert.Equal(t, int64(1), d.Agents[0].OpenLeads)
	})

	t.Run("agent", func(t *testing.T) {
		f := setup(t)
		d, err := f.svc.Dashboard(ctx, session.NewIdentity(f.alice))
		require.NoError(t, err)

		assert.Equal(t, int64(3), d.TotalLeads)
		assert.Equal(t, int64(1), d.OpenLeads)
		assert.Equal(t, int64(1), d.UnreadNotifications)
		assert.Len(t, d.RecentLeads, 3)
		assert.Len(t, d.RecentActivities, 1)
		assert.Nil(t, d.Properties)
		assert.Empty(t, d.Agents)
	})
}

func TestAgents(t *testing.T) {
	f := setup(t)
	stats, err := f.svc.Agents(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)

	alice := stats[0]
	assert.Equal(t, "Alice", alice.FullName)
	assert.Equal(t, int64(3), alice.TotalLeads)
	assert.Equal(t, int64(1), alice.OpenLeads)
	assert.Equal(t, int64(1), alice.WonLeads)
	assert.Equal(t, int64(1), alice.LostLeads)
	assert.Equal(t, 50.0, alice.ConversionRate)
	assert.Equal(t, 66.7, alice.AverageScore)
	assert.Equal(t, 25.0, alice.Utilization)
	assert.Equal(t, int64(1), alice.Activities30d)

	bob := stats[1]
	assert.Equal(t, int64(1), bob.OpenLeads)
	assert.Equal(t, 0.0, bob.ConversionRate)
	assert.Equal(t, 10.0, bob.Utilization)
	assert.Zero(t, bob.Activities30d)
}

func TestAgents_NoLeads(t *testing.T) {
	db := dbtest.Open(t).DB
	createTestUser(t, db, "solo@example.com", "Solo", schema.RoleAgent, 0)

	stats, err := NewService(db, nil).Agents(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Zero(t, stats[0].TotalLeads)
	assert.Zero(t, stats[0].OpenLeads)
	assert.Zero(t, stats[0].AverageScore)
	assert.Zero(t, stats[0].Utilization)
}
