package leads

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/database/dbtest"
	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []schema.Notification
	admins []schema.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n *schema.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, *n)
	return nil
}

func (f *fakeNotifier) NotifyAdmins(_ context.Context, n schema.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admins = append(f.admins, n)
	return nil
}

type fakeMailer struct {
	mu       sync.Mutex
	assigned []string
	acks     []string
}

func (f *fakeMailer) SendLeadAssigned(_ context.Context, agent *schema.User, _ *schema.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = append(f.assigned, agent.Email)
	return nil
}

func (f *fakeMailer) SendContactAcknowledgement(_ context.Context, toEmail, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, toEmail)
	return nil
}

func (f *fakeMailer) SendStaleLeadReminder(context.Context, *schema.User, []schema.Lead) error {
	return nil
}

func (f *fakeMailer) SendAccountCreated(context.Context, *schema.User) error { return nil }

type fakeResponder struct {
	reply   string
	err     error
	history []schema.ChatMessage
}

func (f *fakeResponder) Name() string { return "fake" }

func (f *fakeResponder) Reply(_ context.Context, history []schema.ChatMessage) (string, error) {
	f.history = history
	return f.reply, f.err
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	notifier *fakeNotifier
	mailer   *fakeMailer
	chat     *fakeResponder
	admin    session.Identity
}

func setup(t *testing.T) *fixture {
	db := dbtest.Open(t).DB
	f := &fixture{
		db:       db,
		notifier: &fakeNotifier{},
		mailer:   &fakeMailer{},
		chat:     &fakeResponder{reply: "Happy to help!"},
	}
	f.svc = NewService(db, Deps{Notifier: f.notifier, Mailer: f.mailer, Chat: f.chat})
	f.svc.background = func(run func()) { run() }
	f.admin = session.NewIdentity(createTestUser(t, db, "admin@example.com", schema.RoleAdmin, 50))
	return f
}

func createTestUser(t *testing.T, db *gorm.DB, email string, role schema.Role, maxLeads int) *schema.User {
	u := &schema.User{Email: email, PasswordHash: "x", FullName: "User " + email, Role: role, IsActive: true, MaxLeads: maxLeads}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createTestLead(t *testing.T, db *gorm.DB, name string, assignee *uint, mods ...func(*schema.Lead)) *schema.Lead {
	l := &schema.Lead{FullName: name, Status: schema.StatusNew, Urgency: schema.UrgencyMedium, Source: schema.SourceManual, AssignedToID: assignee}
	for _, m := range mods {
		m(l)
	}
	require.NoError(t, db.Create(l).Error)
	return l
}

func ptr[T any](v T) *T { return &v }

func activityTypes(t *testing.T, db *gorm.DB, leadID uint) []schema.ActivityType {
	var out []schema.ActivityType
	require.NoError(t, db.Model(&schema.LeadActivity{}).Where("lead_id = ?", leadID).Order("id ASC").Pluck("type", &out).Error)
	return out
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("agent owns the leads they create", func(t *testing.T) {
		f := setup(t)
		agent := session.NewIdentity(createTestUser(t, f.db, "agent@example.com", schema.RoleAgent, 50))
		other := createTestUser(t, f.db, "other@example.com", schema.RoleAgent, 50)

		l, err := f.svc.Create(ctx, agent, models.LeadCreateRequest{
			FullName:     "Maria Buyer",
			Email:        " Maria@Example.com ",
			Phone:        "(202) 456-1111",
			AssignedToID: &other.ID,
		})
		require.NoError(t, err)
		require.NotNil(t, l.AssignedToID)
		assert.Equal(t, agent.ID, *l.AssignedToID)
		assert.Equal(t, "maria@example.com", l.Email)
		assert.Equal(t, "+12024561111", l.Phone)
		assert.Equal(t, schema.StatusNew, l.Status)
		assert.Equal(t, schema.UrgencyMedium, l.Urgency)
		assert.Equal(t, schema.SourceManual, l.Source)
		assert.Equal(t, 75, l.Score)
		assert.Equal(t, []schema.ActivityType{schema.ActivityCreated, schema.ActivityAssignment}, activityTypes(t, f.db, l.ID))
		assert.Empty(t, f.notifier.sent, "self-assignment is not announced")
	})

	t.Run("admin leads go to the least loaded agent", func(t *testing.T) {
		f := setup(t)
		busy := createTestUser(t, f.db, "busy@example.com", schema.RoleAgent, 50)
		free := createTestUser(t, f.db, "free@example.com", schema.RoleAgent, 50)
		createTestLead(t, f.db, "Existing", &busy.ID)

		l, err := f.svc.Create(ctx, f.admin, models.LeadCreateRequest{FullName: "New Buyer", Source: "referral", Urgency: "high"})
		require.NoError(t, err)
		require.NotNil(t, l.AssignedToID)
		assert.Equal(t, free.ID, *l.AssignedToID)
		assert.Equal(t, 70, l.Score)

		require.Len(t, f.notifier.sent, 1)
		assert.Equal(t, free.ID, f.notifier.sent[0].UserID)
		assert.Equal(t, schema.NotificationLeadAssigned, f.notifier.sent[0].Type)
		assert.Equal(t, []string{"free@example.com"}, f.mailer.assigned)
	})

	t.Run("admin picks the assignee", func(t *testing.T) {
		f := setup(t)
		agent := createTestUser(t, f.db, "agent@example.com", schema.RoleAgent, 50)

		l, err := f.svc.Create(ctx, f.admin, models.LeadCreateRequest{FullName: "Picked", AssignedToID: &agent.ID})
		require.NoError(t, err)
		assert.Equal(t, agent.ID, *l.AssignedToID)
	})

	t.Run("no capacity leaves the lead unassigned", func(t *testing.T) {
		f := setup(t)
		l, err := f.svc.Create(ctx, f.admin, models.LeadCreateRequest{FullName: "Orphan"})
		require.NoError(t, err)
		assert.Nil(t, l.AssignedToID)
		assert.Empty(t, f.notifier.sent)
	})

	t.Run("budget range is enforced", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Create(ctx, f.admin, models.LeadCreateRequest{FullName: "Bad Budget", BudgetMin: ptr(500.0), BudgetMax: ptr(100.0)})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("unknown property is rejected", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Create(ctx, f.admin, models.LeadCreateRequest{FullName: "Wants Ghost", PropertyID: ptr(uint(999))})
		assert.True(t, domain.IsValidation(err))

		var n int64
		require.NoError(t, f.db.Model(&schema.Lead{}).Count(&n).Error)
		assert.Zero(t, n)
	})
}

func TestList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	agentUser := createTestUser(t, f.db, "agent@example.com", schema.RoleAgent, 50)
	otherUser := createTestUser(t, f.db, "other@example.com", schema.RoleAgent, 50)
	agent := session.NewIdentity(agentUser)

	createTestLead(t, f.db, "Alice Low", &agentUser.ID, func(l *schema.Lead) { l.Urgency = schema.UrgencyLow; l.City = "Madrid" })
	createTestLead(t, f.db, "Bob Critical", &agentUser.ID, func(l *schema.Lead) { l.Urgency = schema.UrgencyCritical; l.Score = 90 })
	createTestLead(t, f.db, "Carol Other", &otherUser.ID)
	createTestLead(t, f.db, "Dan Unassigned", nil)

	t.Run("agents only see their own leads", func(t *testing.T) {
		got, page, err := f.svc.List(ctx, agent, models.LeadListQuery{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
		for _, l := range got {
			require.NotNil(t, l.AssignedToID)
			assert.Equal(t, agentUser.ID, *l.AssignedToID)
		}

		got, _, err = f.svc.List(ctx, agent, models.LeadListQuery{AssignedTo: "unassigned"})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, _, err = f.svc.List(ctx, agent, models.LeadListQuery{Search: "carol"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("admins see every lead", func(t *testing.T) {
		_, page, err := f.svc.List(ctx, f.admin, models.LeadListQuery{})
		require.NoError(t, err)
		assert.Equal(t, int64(4), page.Total)

		got, _, err := f.svc.List(ctx, f.admin, models.LeadListQuery{AssignedTo: "unassigned"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Dan Unassigned", got[0].FullName)
	})

	t.Run("filters and sorting", func(t *testing.T) {
		got, _, err := f.svc.List(ctx, f.admin, models.LeadListQuery{Sort: "urgency", Order: "desc", AssignedTo: "me"})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, _, err = f.svc.List(ctx, agent, models.LeadListQuery{Sort: "urgency", Order: "desc"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Bob Critical", got[0].FullName)

		got, _, err = f.svc.List(ctx, f.admin, models.LeadListQuery{MinScore: ptr(80)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Bob Critical", got[0].FullName)

		got, _, err = f.svc.List(ctx, f.admin, models.LeadListQuery{City: "madrid"})
		require.NoError(t, err)
		require.Len(t, got, 1)

		_, _, err = f.svc.List(ctx, f.admin, models.LeadListQuery{AssignedTo: "someone"})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("pagination", func(t *testing.T) {
		got, page, err := f.svc.List(ctx, f.admin, models.LeadListQuery{Page: 2, Limit: 3})
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Equal(t, 2, page.TotalPages)
		assert.True(t, page.HasPrev)
		assert.False(t, page.HasNext)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("score follows the merged lead", func(t *testing.T) {
		f := setup(t)
		agentUser := createTestUser(t, f.db, "agent@example.com", schema.RoleAgent, 50)
		l := createTestLead(t, f.db, "Score Me", &agentUser.ID, func(l *schema.Lead) { l.Score = 55 })

		got, err := f.svc.Update(ctx, session.NewIdentity(agentUser), l.ID, models.LeadUpdateRequest{
			Email: ptr("buyer@example.com"),
			City:  ptr("Lisbon"),
		})
		require.NoError(t, err)
		assert.Equal(t, 70, got.Score)
		assert.Equal(t, "Lisbon", got.City)
	})

	t.Run("status change is logged and the assignee told", func(t *testing.T) {
		f := setup(t)
		agentUser := createTestUser(t, f.db, "agent@example.com", schema.RoleAgent, 50)
		l := createTestLead(t, f.db, "Moving Along", &agentUser.ID)

		got, err := f.svc.Update(ctx, f.admin, l.ID, models.LeadUpdateRequest{Status: ptr("contacted")})
		require.NoError(t, err)
		assert.Equal(t, schema.StatusContacted, got.Status)
		assert.Equal(t, []schema.ActivityType{schema.ActivityStatusChange}, activityTypes(t, f.db, l.ID))

		require.Len(t, f.notifier.sent, 1)
		assert.Equal(t, schema.NotificationStatusChange, f.notifier.sent[0].Type)
		assert.Contains(t, f.notifier.sent[0].Message, "Status changed from new to contacted")

		_, err = f.svc.Update(ctx, f.admin, l.ID, models.LeadUpdateRequest{Status: ptr("contacted")})
		require.NoError(t, err)
		assert.Len(t, activityTypes(t, f.db, l.ID), 1, "same status is not a transition")
	})

	t.Run("any status may follow any other", func(t *testing.T) {
		f := setup(t)
		l := createTestLead(t, f.db, "Jumper", nil)
		got, err := f.svc.Update(ctx, f.admin, l.ID, models.LeadUpdateRequest{Status: ptr("won")})
		require.NoError(t, err)
		assert.Equal(t, schema.StatusWon, got.Status)
		got, err = f.svc.Update(ctx, f.admin, l.ID, models.LeadUpdateRequest{Status: ptr("new")})
		require.NoError(t, err)
		assert.Equal(t, schema.StatusNew, got.Status)
	})

	t.Run("agents cannot reassign", func(t *testing.T) {
		f := setup(t)
		agentUser := createTestUser(t, f.db, "agent@example.com", schema.RoleAgent, 50)
		otherUser := createTestUser(t, f.db, "other@example.com", schema.RoleAgent, 50)
		l := createTestLead(t, f.db, "Mine", &agentUser.ID)

		_, err := f.svc.Update(ctx, session.NewIdentity(agentUser), l.ID, models.LeadUpdateRequest{AssignedToID: &otherUser.ID})
		assert.True(t, domain.IsForbidden(err))

		_, err = f.svc.Update(ctx, session.NewIdentity(otherUser), l.ID, models.LeadUpdateRequest{City: ptr("Rome")})
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("admin reassigns and unassigns", func(t *testing.T) {
		f := setup(t)
		agentUser := createTestUser(t, f.db, "agent@example.com", schema.RoleAgent, 50)
		otherUser := createTestUser(t, f.db, "other@example.com", schema.RoleAgent, 50)
		l := createTestLead(t, f.db, "Handover", &agentUser.ID)

		got, err := f.svc.Update(ctx, f.admin, l.ID, models.LeadUpdateRequest{AssignedToID: &otherUser.ID})
		require.NoError(t, err)
		assert.Equal(t, otherUser.ID, *got.AssignedToID)
		require.NotNil(t, got.AssignedTo)
		assert.Equal(t, otherUser.Email, got.AssignedTo.Email)
		assert.Equal(t, []string{otherUser.Email}, f.mailer.assigned)

		got, err = f.svc.Update(ctx, f.admin, l.ID, models.LeadUpdateRequest{Unassign: true})
		require.NoError(t, err)
		assert.Nil(t, got.AssignedToID)
	})

	t.Run("merged budget must stay ordered", func(t *testing.T) {
		f := setup(t)
		l := createTestLead(t, f.db, "Budget", nil, func(l *schema.Lead) { l.BudgetMax = ptr(1000.0) })
		_, err := f.svc.Update(ctx, f.admin, l.ID, models.LeadUpdateRequest{BudgetMin: ptr(2000.0)})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("clear resets nullable fields", func(t *testing.T) {
		f := setup(t)
		prop := &schema.Property{Title: "Flat", Category: schema.CategoryRent, Type: "apartment", City: "Valencia", IsActive: true}
		require.NoError(t, f.db.Create(prop).Error)
		l := createTestLead(t, f.db, "Reset Me", nil, func(l *schema.Lead) {
			l.BudgetMin = ptr(500.0)
			l.BudgetMax = ptr(900.0)
			l.PropertyID = &prop.ID
		})

		got, err := f.svc.Update(ctx, f.admin, l.ID, models.LeadUpdateRequest{
			BudgetMin: ptr(700.0),
			Clear:     []string{"budget_min", "budget_max", "property_id"},
		})
		require.NoError(t, err)
		assert.Nil(t, got.BudgetMin)
		assert.Nil(t, got.BudgetMax)
		assert.Nil(t, got.PropertyID)

		var stored schema.Lead
		require.NoError(t, f.db.First(&stored, l.ID).Error)
		assert.Nil(t, stored.BudgetMin)
		assert.Nil(t, stored.BudgetMax)
		assert.Nil(t, stored.PropertyID)
	})

	t.Run("clearing one bound keeps the other", func(t *testing.T) {
		f := setup(t)
		l := createTestLead(t, f.db, "Half", nil, func(l *schema.Lead) {
			l.BudgetMin = ptr(500.0)
			l.BudgetMax = ptr(900.0)
		})
		got, err := f.svc.Update(ctx, f.admin, l.ID, models.LeadUpdateRequest{Clear: []string{"budget_max"}})
		require.NoError(t, err)
		require.NotNil(t, got.BudgetMin)
		assert.Equal(t, 500.0, *got.BudgetMin)
		assert.Nil(t, got.BudgetMax)
	})
}

func TestDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	agentUser := createTestUser(t, f.db, "agent@example.com", schema.RoleAgent, 50)

	soft := createTestLead(t, f.db, "Soft", &agentUser.ID)
	hard := createTestLead(t, f.db, "Hard", &agentUser.ID)
	require.NoError(t, f.db.Create(&schema.LeadActivity{LeadID: hard.ID, Type: schema.ActivityCall, Title: "Called"}).Error)
	require.NoError(t, f.db.Create(&schema.Notification{UserID: agentUser.ID, LeadID: &hard.ID, Type: schema.NotificationSystem, Title: "About hard"}).Error)

	err := f.svc.Delete(ctx, session.NewIdentity(agentUser), soft.ID, false)
	assert.True(t, domain.IsForbidden(err))

	require.NoError(t, f.svc.Delete(ctx, f.admin, soft.ID, false))
	_, err = f.svc.Get(ctx, f.admin, soft.ID)
	assert.True(t, domain.IsNotFound(err))
	var n int64
	require.NoError(t, f.db.Unscoped().Model(&schema.Lead{}).Where("id = ?", soft.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n, "soft delete keeps the row")

	require.NoError(t, f.svc.Delete(ctx, f.admin, hard.ID, true))
	require.NoError(t, f.db.Unscoped().Model(&schema.Lead{}).Where("id = ?", hard.ID).Count(&n).Error)
	assert.Zero(t, n)
	assert.Empty(t, activityTypes(t, f.db, hard.ID))

	var note schema.Notification
	require.NoError(t, f.db.Where("title = ?", "About hard").First(&note).Error)
	assert.Nil(t, note.LeadID)

	require.NoError(t, f.svc.Delete(ctx, f.admin, soft.ID, true), "hard delete reaches soft-deleted leads")
	assert.True(t, domain.IsNotFound(f.svc.Delete(ctx, f.admin, soft.ID, true)))
}

func TestNotesAndActivities(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	agentUser := createTestUser(t, f.db, "agent@example.com", schema.RoleAgent, 50)
	agent := session.NewIdentity(agentUser)
	l := createTestLead(t, f.db, "Noted", &agentUser.ID)

	note, err := f.svc.AddNote(ctx, agent, l.ID, models.NoteRequest{Content: "Prefers ground floor"})
	require.NoError(t, err)
	assert.NotEmpty(t, note.ID)
	assert.Equal(t, agentUser.FullName, note.AuthorName)

	_, err = f.svc.AddNote(ctx, agent, l.ID, models.NoteRequest{Content: "Has a dog"})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, agent, l.ID)
	require.NoError(t, err)
	require.Len(t, got.Notes, 2)
	assert.Equal(t, "Prefers ground floor", got.Notes[0].Content)

	due := time.Now().Add(24 * time.Hour)
	task, err := f.svc.AddActivity(ctx, agent, l.ID, models.ActivityRequest{
		Type: "task", Title: "Send brochure", DueDate: &due, Priority: "high",
		Metadata: map[string]any{"channel": "email"},
	})
	require.NoError(t, err)
	assert.Equal(t, schema.ActivityTask, task.Type)
	assert.Equal(t, "high", task.Metadata["priority"])
	assert.Equal(t, false, task.Metadata["completed"])
	assert.Equal(t, "email", task.Metadata["channel"])

	trail, err := f.svc.Activities(ctx, agent, l.ID, 0)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, schema.ActivityTask, trail[0].Type)

	stranger := session.NewIdentity(createTestUser(t, f.db, "stranger@example.com", schema.RoleAgent, 50))
	_, err = f.svc.AddNote(ctx, stranger, l.ID, models.NoteRequest{Content: "hi"})
	assert.True(t, domain.IsNotFound(err))
	_, err = f.svc.Activities(ctx, stranger, l.ID, 0)
	assert.True(t, domain.IsNotFound(err))
}

func TestSubmitContact(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	agent := createTestUser(t, f.db, "agent@example.com", schema.RoleAgent, 50)

	l, err := f.svc.SubmitContact(ctx, models.ContactFormRequest{
		Name:    "Web Visitor",
		Email:   "Visitor@Example.com",
		Message: "I would like to see the flat on Main Street.",
	})
	require.NoError(t, err)
	assert.Equal(t, schema.SourceWebsiteForm, l.Source)
	assert.Equal(t, "visitor@example.com", l.Email)
	require.NotNil(t, l.AssignedToID)
	assert.Equal(t, agent.ID, *l.AssignedToID)

	require.Len(t, f.notifier.admins, 1)
	assert.Equal(t, schema.NotificationNewLead, f.notifier.admins[0].Type)
	assert.Equal(t, []string{"visitor@example.com"}, f.mailer.acks)

	types := activityTypes(t, f.db, l.ID)
	require.NotEmpty(t, types)
	assert.Equal(t, schema.ActivityCreated, types[0])
}

func TestChat(t *testing.T) {
	ctx := context.Background()

	t.Run("conversation is stored on a chatbot lead", func(t *testing.T) {
		f := setup(t)

		first, err := f.svc.Chat(ctx, models.ChatRequest{Message: "Do you have flats to rent?"})
		require.NoError(t, err)
		assert.Equal(t, "Happy to help!", first.Reply)
		require.Len(t, f.chat.history, 1)

		second, err := f.svc.Chat(ctx, models.ChatRequest{
			SessionLeadID: &first.LeadID,
			Name:          "Pat Visitor",
			Email:         "pat@example.com",
			Message:       "My email is pat@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, first.LeadID, second.LeadID)
		assert.Len(t, f.chat.history, 3)

		var l schema.Lead
		require.NoError(t, f.db.First(&l, first.LeadID).Error)
		assert.Equal(t, schema.SourceChatbot, l.Source)
		assert.Equal(t, "Pat Visitor", l.FullName)
		assert.Equal(t, "pat@example.com", l.Email)
		assert.Equal(t, 70, l.Score)
		require.Len(t, l.ChatMessages, 4)
		assert.Equal(t, "user", l.ChatMessages[0].Role)
		assert.Equal(t, "assistant", l.ChatMessages[1].Role)
		require.Len(t, f.notifier.admins, 1)
	})

	t.Run("unknown session", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Chat(ctx, models.ChatRequest{SessionLeadID: ptr(uint(42)), Message: "hello"})
		assert.True(t, domain.IsNotFound(err))

		manual := createTestLead(t, f.db, "Manual", nil)
		_, err = f.svc.Chat(ctx, models.ChatRequest{SessionLeadID: &manual.ID, Message: "hello"})
		assert.True(t, domain.IsNotFound(err), "only chatbot leads carry conversations")
	})

	t.Run("responder failure is reported", func(t *testing.T) {
		f := setup(t)
		f.chat.err = errors.New("upstream down")
		_, err := f.svc.Chat(ctx, models.ChatRequest{Message: "hello"})
		assert.Error(t, err)
	})
}

func TestExport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	agentUser := createTestUser(t, f.db, "agent@example.com", schema.RoleAgent, 50)
	createTestLead(t, f.db, "Exported One", &agentUser.ID, func(l *schema.Lead) { l.BudgetMin = ptr(1500.0) })
	createTestLead(t, f.db, "Exported Two", nil)

	data, n, err := f.svc.Export(ctx, session.NewIdentity(agentUser), models.LeadListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, "Exported One", rows[1][1])
	assert.Equal(t, "1500", rows[1][11])
	assert.Equal(t, agentUser.FullName, rows[1][13])
}

func TestStale(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	agentUser := createTestUser(t, f.db, "agent@example.com", schema.RoleAgent, 50)
	old := time.Now().UTC().Add(-72 * time.Hour)

	createTestLead(t, f.db, "Forgotten", &agentUser.ID, func(l *schema.Lead) { l.StatusChangedAt = old })
	createTestLead(t, f.db, "Fresh", &agentUser.ID, func(l *schema.Lead) { l.StatusChangedAt = time.Now().UTC() })
	createTestLead(t, f.db, "Worked", &agentUser.ID, func(l *schema.Lead) { l.StatusChangedAt = old; l.Status = schema.StatusContacted })
	createTestLead(t, f.db, "Nobody's", nil, func(l *schema.Lead) { l.StatusChangedAt = old })

	got, err := f.svc.Stale(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Forgotten", got[0].FullName)
	require.NotNil(t, got[0].AssignedTo)
	assert.Equal(t, agentUser.ID, got[0].AssignedTo.ID)
}
