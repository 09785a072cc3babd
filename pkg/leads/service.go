package leads

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/leadassignment"
	"github.com/jordanlanch/estatecrm/pkg/leadlifecycle"
	"github.com/jordanlanch/estatecrm/pkg/leadscoring"
	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/jordanlanch/estatecrm/pkg/metrics"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/phone"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/session"
	"github.com/jordanlanch/estatecrm/pkg/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultLimit = 20
	exportLimit  = 10000
)

// urgencyRank and statusRank sort enum columns by meaning instead of spelling.
const (
	urgencyRank = "CASE urgency WHEN 'low' THEN 0 WHEN 'medium' THEN 1 WHEN 'high' THEN 2 WHEN 'critical' THEN 3 ELSE 4 END"
	statusRank  = "CASE status WHEN 'new' THEN 0 WHEN 'contacted' THEN 1 WHEN 'qualified' THEN 2 WHEN 'viewing' THEN 3 WHEN 'negotiating' THEN 4 WHEN 'won' THEN 5 WHEN 'lost' THEN 6 ELSE 7 END"
)

// Deps are the collaborators of the lead service. Nil members are skipped,
// except Lifecycle and Assignments which are built from the database.
type Deps struct {
	Lifecycle   *leadlifecycle.Service
	Assignments *leadassignment.Service
	Notifier    domain.Notifier
	Mailer      domain.Mailer
	Chat        domain.ChatResponder
	Phones      *phone.Normalizer
	Metrics     *metrics.Metrics
	Logger      logger.Logger
}

// Service handles lead business logic
type Service struct {
	db          *gorm.DB
	lifecycle   *leadlifecycle.Service
	assignments *leadassignment.Service
	notifier    domain.Notifier
	mailer      domain.Mailer
	chat        domain.ChatResponder
	phones      *phone.Normalizer
	metrics     *metrics.Metrics
	log         logger.Logger
	now         func() time.Time
	background  func(func())
}

// NewService creates a new lead service
func NewService(db *gorm.DB, deps Deps) *Service {
	if deps.Lifecycle == nil {
		deps.Lifecycle = leadlifecycle.NewService(db)
	}
	if deps.Assignments == nil {
		deps.Assignments = leadassignment.NewService(db)
	}
	if deps.Phones == nil {
		deps.Phones = phone.NewNormalizer(phone.DefaultRegion)
	}
	return &Service{
		db:          db,
		lifecycle:   deps.Lifecycle,
		assignments: deps.Assignments,
		notifier:    deps.Notifier,
		mailer:      deps.Mailer,
		chat:        deps.Chat,
		phones:      deps.Phones,
		metrics:     deps.Metrics,
		log:         logger.OrNop(deps.Logger),
		now:         func() time.Time { return time.Now().UTC() },
		background:  func(f func()) { go f() },
	}
}

func scoped(q *gorm.DB, ownerID *uint) *gorm.DB {
	if ownerID != nil {
		return q.Where("assigned_to_id = ?", *ownerID)
	}
	return q
}

func (s *Service) find(q *gorm.DB, id uint, ownerID *uint) (*schema.Lead, error) {
	var l schema.Lead
	if err := scoped(q, ownerID).Where("id = ?", id).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Lead")
		}
		return nil, fmt.Errorf("failed to fetch lead: %w", err)
	}
	return &l, nil
}

// Get returns a lead visible to actor, with its assignee loaded
func (s *Service) Get(ctx context.Context, actor session.Identity, id uint) (*schema.Lead, error) {
	return s.find(s.db.WithContext(ctx).Preload("AssignedTo"), id, actor.OwnerScope())
}

// filtered applies the list filters and the actor's visibility to q
func (s *Service) filtered(q *gorm.DB, actor session.Identity, f models.LeadListQuery) (*gorm.DB, error) {
	q = scoped(q.Model(&schema.Lead{}), actor.OwnerScope())

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Urgency != "" {
		q = q.Where("urgency = ?", f.Urgency)
	}
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.City != "" {
		q = q.Where("LOWER(city) = ?", strings.ToLower(f.City))
	}
	if f.TransactionType != "" {
		q = q.Where("transaction_type = ?", f.TransactionType)
	}
	if f.MinScore != nil {
		q = q.Where("score >= ?", *f.MinScore)
	}
	if f.MaxScore != nil {
		q = q.Where("score <= ?", *f.MaxScore)
	}
	switch f.AssignedTo {
	case "":
	case "me":
		q = q.Where("assigned_to_id = ?", actor.ID)
	case "unassigned", "none":
		q = q.Where("assigned_to_id IS NULL")
	default:
		id, err := strconv.ParseUint(f.AssignedTo, 10, 64)
		if err != nil {
			return nil, domain.NewValidationError("Validation failed", domain.FieldError{
				Field: "assigned_to", Message: "must be a user id, me or unassigned", Code: validation.CodeInvalid,
			})
		}
		q = q.Where("assigned_to_id = ?", id)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ? OR LOWER(city) LIKE ? OR LOWER(message) LIKE ?",
			like, like, like, like, like)
	}
	return q, nil
}

func orderBy(f models.LeadListQuery) string {
	dir := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		dir = "ASC"
	}
	switch f.Sort {
	case "urgency":
		return urgencyRank + " " + dir
	case "status":
		return statusRank + " " + dir
	case "score", "updated_at", "full_name", "created_at":
		return f.Sort + " " + dir
	default:
		return "created_at " + dir
	}
}

// List returns one page of the leads visible to actor. Agents only ever see
// leads assigned to them.
func (s *Service) List(ctx context.Context, actor session.Identity, f models.LeadListQuery) ([]schema.Lead, models.PaginationInfo, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > 100 {
		f.Limit = 100
	}

	q, err := s.filtered(s.db.WithContext(ctx), actor, f)
	if err != nil {
		return nil, models.PaginationInfo{}, err
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, models.PaginationInfo{}, fmt.Errorf("failed to count leads: %w", err)
	}

	var out []schema.Lead
	err = q.Preload("AssignedTo").
		Order(orderBy(f)).Order("id DESC").
		Limit(f.Limit).Offset((f.Page - 1) * f.Limit).
		Find(&out).Error
	if err != nil {
		return nil, models.PaginationInfo{}, fmt.Errorf("failed to list leads: %w", err)
	}
	return out, models.NewPaginationInfo(f.Page, f.Limit, total), nil
}

func (s *Service) normalizePhone(p string) string {
	if p == "" {
		return ""
	}
	return s.phones.NormalizeOrKeep(p)
}

func demandFrom(req *models.DemandRequest) schema.Demand {
	if req == nil {
		return schema.Demand{}
	}
	return schema.Demand{
		PropertyType: req.PropertyType,
		Bedrooms:     req.Bedrooms,
		BudgetMin:    req.BudgetMin,
		BudgetMax:    req.BudgetMax,
		AreaMin:      req.AreaMin,
		AreaMax:      req.AreaMax,
		Districts:    req.Districts,
		Comment:      req.Comment,
	}
}

func checkProperty(tx *gorm.DB, id *uint) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := tx.Model(&schema.Property{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check property: %w", err)
	}
	if n == 0 {
		return domain.NewValidationError("Validation failed", domain.FieldError{
			Field: "property_id", Message: "property does not exist", Code: validation.CodeInvalid,
		})
	}
	return nil
}

// insert stores a new lead with its score and records the created activity.
func (s *Service) insert(tx *gorm.DB, l *schema.Lead, actorID *uint) error {
	if err := checkProperty(tx, l.PropertyID); err != nil {
		return err
	}
	if l.Status == "" {
		l.Status = schema.StatusNew
	}
	if l.Urgency == "" {
		l.Urgency = schema.UrgencyMedium
	}
	if l.Source == "" {
		l.Source = schema.SourceManual
	}
	if l.Notes == nil {
		l.Notes = datatypes.JSONSlice[schema.LeadNote]{}
	}
	if l.ChatMessages == nil {
		l.ChatMessages = datatypes.JSONSlice[schema.ChatMessage]{}
	}
	l.StatusChangedAt = s.now()
	l.Score = leadscoring.ScoreLead(l)

	if err := tx.Omit("AssignedTo").Create(l).Error; err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return s.lifecycle.RecordTx(tx, &schema.LeadActivity{
		LeadID:   l.ID,
		Type:     schema.ActivityCreated,
		Title:    "Lead created",
		UserID:   actorID,
		Metadata: datatypes.JSONMap{"source": string(l.Source), "score": l.Score},
	})
}

// Create stores a lead entered by a CRM user. Agents always own the leads
// they create; admins may pick an assignee or leave it to auto-assignment.
func (s *Service) Create(ctx context.Context, actor session.Identity, req models.LeadCreateRequest) (*schema.Lead, error) {
	if err := validation.CheckBudget(req.BudgetMin, req.BudgetMax); err != nil {
		return nil, err
	}

	l := &schema.Lead{
		FullName:        req.FullName,
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:           s.normalizePhone(req.Phone),
		City:            req.City,
		Message:         req.Message,
		TransactionType: schema.TransactionType(req.TransactionType),
		PropertyType:    req.PropertyType,
		BudgetMin:       req.BudgetMin,
		BudgetMax:       req.BudgetMax,
		Status:          schema.LeadStatus(req.Status),
		Urgency:         schema.Urgency(req.Urgency),
		Source:          schema.LeadSource(req.Source),
		PropertyID:      req.PropertyID,
		Demand:          datatypes.NewJSONType(demandFrom(req.Demand)),
	}

	actorID := &actor.ID
	var assigned *leadassignment.AssignmentResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.insert(tx, l, actorID); err != nil {
			return err
		}
		var err error
		switch {
		case !actor.Can(session.AssignLeads):
			assigned, err = s.assignments.Assign(tx, l, actor.ID, actorID, leadassignment.TypeManual, "created by agent")
		case req.AssignedToID != nil:
			assigned, err = s.assignments.Assign(tx, l, *req.AssignedToID, actorID, leadassignment.TypeManual, "")
		default:
			assigned, err = s.assignments.AutoAssign(tx, l, actorID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLeadCreated(string(l.Source))
	s.announceAssignment(ctx, l, assigned, actor.ID)
	return l, nil
}

// createPublic stores a lead arriving from a public channel: it is
// auto-assigned and every admin hears about it.
func (s *Service) createPublic(ctx context.Context, l *schema.Lead, title string) error {
	var assigned *leadassignment.AssignmentResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.insert(tx, l, nil); err != nil {
			return err
		}
		var err error
		assigned, err = s.assignments.AutoAssign(tx, l, nil)
		return err
	})
	if err != nil {
		return err
	}

	s.metrics.RecordLeadCreated(string(l.Source))
	if s.notifier != nil {
		leadID := l.ID
		err := s.notifier.NotifyAdmins(ctx, schema.Notification{
			LeadID:  &leadID,
			Type:    schema.NotificationNewLead,
			Title:   title,
			Message: fmt.Sprintf("%s (%s) came in through %s", l.FullName, contactOf(l), l.Source),
		})
		if err != nil {
			s.log.Warn("failed to notify admins of new lead", "lead_id", l.ID, "error", err)
		}
	}
	s.announceAssignment(ctx, l, assigned, 0)
	return nil
}

func contactOf(l *schema.Lead) string {
	switch {
	case l.Email != "":
		return l.Email
	case l.Phone != "":
		return l.Phone
	default:
		return "no contact details"
	}
}

// announceAssignment tells a new assignee about the lead unless they assigned it themselves.
func (s *Service) announceAssignment(ctx context.Context, l *schema.Lead, a *leadassignment.AssignmentResponse, actorID uint) {
	if a == nil {
		return
	}
	s.metrics.RecordLeadAssigned()
	if a.UserID == actorID {
		return
	}
	leadID := l.ID
	s.notify(ctx, &schema.Notification{
		UserID:  a.UserID,
		LeadID:  &leadID,
		Type:    schema.NotificationLeadAssigned,
		Title:   "New lead assigned",
		Message: fmt.Sprintf("%s was assigned to you", l.FullName),
	})

	if s.mailer != nil && l.AssignedTo != nil {
		agent, lead := *l.AssignedTo, *l
		s.deliver(func(ctx context.Context) error {
			return s.mailer.SendLeadAssigned(ctx, &agent, &lead)
		})
	}
}

func (s *Service) notify(ctx context.Context, n *schema.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn("failed to send notification", "type", n.Type, "user_id", n.UserID, "error", err)
	}
}

// deliver runs an email send off the request path.
func (s *Service) deliver(send func(context.Context) error) {
	s.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			s.log.Error("failed to send email", "error", err)
		}
	})
}

// Update applies a partial update. The score is recomputed from the merged
// lead and a status change is recorded as a status_change activity. Only
// users who may assign leads can change the assignee.
func (s *Service) Update(ctx context.Context, actor session.Identity, id uint, req models.LeadUpdateRequest) (*schema.Lead, error) {
	if !actor.Can(session.AssignLeads) && (req.AssignedToID != nil || req.Unassign) {
		return nil, domain.NewForbiddenError("Agents cannot change lead assignment")
	}

	var (
		l        *schema.Lead
		tr       *leadlifecycle.Transition
		assigned *leadassignment.AssignmentResponse
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		l, err = s.find(tx, id, actor.OwnerScope())
		if err != nil {
			return err
		}

		changes := s.merge(l, req)
		if err := validation.CheckBudget(l.BudgetMin, l.BudgetMax); err != nil {
			return err
		}
		if l.PropertyID != nil && req.PropertyID != nil {
			if err := checkProperty(tx, req.PropertyID); err != nil {
				return err
			}
		}
		if score := leadscoring.ScoreLead(l); score != l.Score {
			l.Score = score
			changes["score"] = score
		}
		if len(changes) > 0 {
			if err := tx.Model(&schema.Lead{}).Where("id = ?", l.ID).Updates(changes).Error; err != nil {
				return fmt.Errorf("failed to update lead: %w", err)
			}
		}

		if req.Status != nil {
			if tr, err = s.lifecycle.ApplyTransition(tx, l, schema.LeadStatus(*req.Status), &actor.ID, ""); err != nil {
				return err
			}
		}

		switch {
		case req.Unassign:
			err = s.assignments.Unassign(tx, l, &actor.ID)
		case req.AssignedToID != nil:
			assigned, err = s.assignments.Assign(tx, l, *req.AssignedToID, &actor.ID, leadassignment.TypeManual, "")
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.announceTransition(ctx, l, tr, actor.ID)
	s.announceAssignment(ctx, l, assigned, actor.ID)

	return s.find(s.db.WithContext(ctx).Preload("AssignedTo"), id, nil)
}

// ChangeStatus moves a lead to another pipeline stage and keeps reason on
// the status_change activity.
func (s *Service) ChangeStatus(ctx context.Context, actor session.Identity, id uint, req models.StatusChangeRequest) (*schema.Lead, error) {
	l, tr, err := s.lifecycle.ChangeStatus(ctx, id, schema.LeadStatus(req.Status), &actor.ID, actor.OwnerScope(), req.Reason)
	if err != nil {
		return nil, err
	}
	s.announceTransition(ctx, l, tr, actor.ID)
	return s.find(s.db.WithContext(ctx).Preload("AssignedTo"), id, nil)
}

// announceTransition counts a status change and tells the assignee when
// someone else made it.
func (s *Service) announceTransition(ctx context.Context, l *schema.Lead, tr *leadlifecycle.Transition, actorID uint) {
	if tr == nil {
		return
	}
	s.metrics.RecordStatusChange(string(tr.To))
	if l.AssignedToID == nil || *l.AssignedToID == actorID {
		return
	}
	leadID := l.ID
	s.notify(ctx, &schema.Notification{
		UserID:  *l.AssignedToID,
		LeadID:  &leadID,
		Type:    schema.NotificationStatusChange,
		Title:   "Lead status changed",
		Message: fmt.Sprintf("%s: %s", l.FullName, leadlifecycle.StatusChangeTitle(tr.From, tr.To)),
	})
}

// merge copies the set fields of req onto l and returns the column changes.
// Fields named in req.Clear are reset to NULL.
func (s *Service) merge(l *schema.Lead, req models.LeadUpdateRequest) map[string]any {
	changes := map[string]any{}
	if req.FullName != nil {
		l.FullName = *req.FullName
		changes["full_name"] = l.FullName
	}
	if req.Email != nil {
		l.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		changes["email"] = l.Email
	}
	if req.Phone != nil {
		l.Phone = s.normalizePhone(*req.Phone)
		changes["phone"] = l.Phone
	}
	if req.City != nil {
		l.City = *req.City
		changes["city"] = l.City
	}
	if req.Message != nil {
		l.Message = *req.Message
		changes["message"] = l.Message
	}
	if req.TransactionType != nil {
		l.TransactionType = schema.TransactionType(*req.TransactionType)
		changes["transaction_type"] = l.TransactionType
	}
	if req.PropertyType != nil {
		l.PropertyType = *req.PropertyType
		changes["property_type"] = l.PropertyType
	}
	if req.BudgetMin != nil {
		l.BudgetMin = req.BudgetMin
		changes["budget_min"] = *req.BudgetMin
	}
	if req.BudgetMax != nil {
		l.BudgetMax = req.BudgetMax
		changes["budget_max"] = *req.BudgetMax
	}
	if req.Urgency != nil {
		l.Urgency = schema.Urgency(*req.Urgency)
		changes["urgency"] = l.Urgency
	}
	if req.Source != nil {
		l.Source = schema.LeadSource(*req.Source)
		changes["source"] = l.Source
	}
	if req.PropertyID != nil {
		l.PropertyID = req.PropertyID
		changes["property_id"] = *req.PropertyID
	}
	if req.Demand != nil {
		l.Demand = datatypes.NewJSONType(demandFrom(req.Demand))
		changes["demand"] = l.Demand
	}
	for _, field := range req.Clear {
		switch field {
		case "budget_min":
			l.BudgetMin = nil
		case "budget_max":
			l.BudgetMax = nil
		case "property_id":
			l.PropertyID = nil
		default:
			continue
		}
		changes[field] = nil
	}
	return changes
}

// Delete removes a lead. Soft deletes keep the row and its trail; hard
// deletes drop the activities and detach notifications.
func (s *Service) Delete(ctx context.Context, actor session.Identity, id uint, hard bool) error {
	if !actor.Can(session.DeleteLeads) {
		return domain.NewForbiddenError("Only admins can delete leads")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if hard {
			q = tx.Unscoped()
		}
		l, err := s.find(q, id, nil)
		if err != nil {
			return err
		}
		if !hard {
			if err := tx.Delete(l).Error; err != nil {
				return fmt.Errorf("failed to delete lead: %w", err)
			}
			return nil
		}

		if err := tx.Where("lead_id = ?", l.ID).Delete(&schema.LeadActivity{}).Error; err != nil {
			return fmt.Errorf("failed to delete lead activities: %w", err)
		}
		if err := tx.Model(&schema.Notification{}).Where("lead_id = ?", l.ID).Update("lead_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach notifications: %w", err)
		}
		if err := tx.Unscoped().Delete(l).Error; err != nil {
			return fmt.Errorf("failed to delete lead: %w", err)
		}
		return nil
	})
}

// AddNote appends a note to the lead's embedded notes and records it in the trail.
func (s *Service) AddNote(ctx context.Context, actor session.Identity, id uint, req models.NoteRequest) (*schema.LeadNote, error) {
	note := schema.LeadNote{
		ID:         uuid.NewString(),
		Content:    req.Content,
		AuthorID:   actor.ID,
		AuthorName: actor.FullName,
		CreatedAt:  s.now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := s.find(tx, id, actor.OwnerScope())
		if err != nil {
			return err
		}
		notes := append(l.Notes, note)
		if err := tx.Model(&schema.Lead{}).Where("id = ?", l.ID).Update("notes", notes).Error; err != nil {
			return fmt.Errorf("failed to save note: %w", err)
		}
		return s.lifecycle.RecordTx(tx, &schema.LeadActivity{
			LeadID:      l.ID,
			Type:        schema.ActivityNote,
			Title:       "Note added",
			Description: note.Content,
			UserID:      &actor.ID,
			Metadata:    datatypes.JSONMap{"note_id": note.ID},
		})
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// AddActivity appends a call, email, meeting, note or task to the lead's trail.
func (s *Service) AddActivity(ctx context.Context, actor session.Identity, id uint, req models.ActivityRequest) (*schema.LeadActivity, error) {
	meta := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	if req.DueDate != nil {
		meta["due_date"] = req.DueDate.UTC().Format(time.RFC3339)
	}
	if req.Priority != "" {
		meta["priority"] = req.Priority
	}
	if schema.ActivityType(req.Type) == schema.ActivityTask {
		meta["completed"] = false
	}

	activity := &schema.LeadActivity{
		Type:        schema.ActivityType(req.Type),
		Title:       req.Title,
		Description: req.Description,
		UserID:      &actor.ID,
		Metadata:    meta,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := s.find(tx, id, actor.OwnerScope())
		if err != nil {
			return err
		}
		activity.LeadID = l.ID
		if err := s.lifecycle.RecordTx(tx, activity); err != nil {
			return err
		}
		// Touch the lead so recently worked leads sort first.
		return tx.Model(&schema.Lead{}).Where("id = ?", l.ID).Update("updated_at", s.now()).Error
	})
	if err != nil {
		return nil, err
	}
	return activity, nil
}

// Activities returns the trail of a lead visible to actor, newest first.
func (s *Service) Activities(ctx context.Context, actor session.Identity, id uint, limit int) ([]schema.LeadActivity, error) {
	if _, err := s.find(s.db.WithContext(ctx), id, actor.OwnerScope()); err != nil {
		return nil, err
	}
	return s.lifecycle.Activities(ctx, id, limit)
}

// StatusHistory returns the status changes of a lead visible to actor.
func (s *Service) StatusHistory(ctx context.Context, actor session.Identity, id uint) ([]schema.LeadActivity, error) {
	if _, err := s.find(s.db.WithContext(ctx), id, actor.OwnerScope()); err != nil {
		return nil, err
	}
	return s.lifecycle.History(ctx, id)
}

// AssignmentHistory returns the assignment trail of a lead visible to actor.
func (s *Service) AssignmentHistory(ctx context.Context, actor session.Identity, id uint) ([]schema.LeadActivity, error) {
	if _, err := s.find(s.db.WithContext(ctx), id, actor.OwnerScope()); err != nil {
		return nil, err
	}
	return s.assignments.History(ctx, id)
}

// Stale returns assigned leads still in status new whose status has not
// changed since before cutoff, with their assignees loaded.
func (s *Service) Stale(ctx context.Context, cutoff time.Time) ([]schema.Lead, error) {
	var out []schema.Lead
	err := s.db.WithContext(ctx).
		Preload("AssignedTo").
		Where("status = ? AND assigned_to_id IS NOT NULL AND status_changed_at < ?", schema.StatusNew, cutoff.UTC()).
		Order("assigned_to_id ASC").Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stale leads: %w", err)
	}
	return out, nil
}
