package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/auth"
	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/leadassignment"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/phone"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/session"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned by Authenticate for unknown emails and
// wrong passwords alike.
var ErrInvalidCredentials = domain.NewUnauthorizedError("Invalid email or password")

var dummyHash = sync.OnceValue(func() string {
	h, _ := auth.HashPassword("estatecrm-no-such-user")
	return h
})

func hashPassword(field, password string) (string, error) {
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", domain.NewValidationError("Validation failed", domain.FieldError{
			Field: field, Message: "must be at most 72 bytes", Code: "too_big",
		})
	}
	return hash, err
}

// Service handles CRM accounts
type Service struct {
	db          *gorm.DB
	assignments *leadassignment.Service
	phones      *phone.Normalizer
	now         func() time.Time
}

// NewService creates a new user service
func NewService(db *gorm.DB, assignments *leadassignment.Service, phones *phone.Normalizer) *Service {
	if assignments == nil {
		assignments = leadassignment.NewService(db)
	}
	if phones == nil {
		phones = phone.NewNormalizer(phone.DefaultRegion)
	}
	return &Service{
		db:          db,
		assignments: assignments,
		phones:      phones,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetByID returns a user by id
func (s *Service) GetByID(ctx context.Context, id uint) (*schema.User, error) {
	var u schema.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User")
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &u, nil
}

// GetByEmail returns a user by email, case-insensitively
func (s *Service) GetByEmail(ctx context.Context, email string) (*schema.User, error) {
	var u schema.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User")
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &u, nil
}

func (s *Service) emailTaken(ctx context.Context, email string, exceptID uint) (bool, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&schema.User{}).Where("email = ?", email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return n > 0, nil
}

// Create registers a new account. Role defaults to agent.
func (s *Service) Create(ctx context.Context, req models.RegisterRequest) (*schema.User, error) {
	email := normalizeEmail(req.Email)
	taken, err := s.emailTaken(ctx, email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.NewConflictError("User with this email already exists")
	}

	hash, err := hashPassword("password", req.Password)
	if err != nil {
		return nil, err
	}

	role := schema.Role(req.Role)
	if role == "" {
		role = schema.RoleAgent
	}
	maxLeads := schema.DefaultMaxLeads
	if req.MaxLeads != nil {
		maxLeads = *req.MaxLeads
	}

	u := &schema.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Phone:        s.phones.NormalizeOrKeep(req.Phone),
		Role:         role,
		IsActive:     true,
		MaxLeads:     maxLeads,
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	// default:50 on the column swallows an explicit zero capacity
	if maxLeads == 0 {
		if err := s.db.WithContext(ctx).Model(u).Update("max_leads", 0).Error; err != nil {
			return nil, fmt.Errorf("failed to set capacity: %w", err)
		}
		u.MaxLeads = 0
	}
	return u, nil
}

// Authenticate checks credentials and stamps last_login_at.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*schema.User, error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		if domain.IsNotFound(err) {
			// Keep timing close to the wrong-password path.
			auth.CheckPassword(dummyHash(), password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, domain.NewUnauthorizedError("Account is disabled")
	}

	now := s.now()
	updates := map[string]any{"last_login_at": now}
	if auth.NeedsRehash(u.PasswordHash) {
		if hash, err := auth.HashPassword(password); err == nil {
			updates["password_hash"] = hash
			u.PasswordHash = hash
		}
	}
	if err := s.db.WithContext(ctx).Model(u).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	u.LastLoginAt = &now
	return u, nil
}

// ChangePassword replaces the password of id after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, id uint, current, next string) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, current) {
		return domain.NewValidationError("Validation failed", domain.FieldError{
			Field: "current_password", Message: "is incorrect", Code: "invalid",
		})
	}
	hash, err := hashPassword("new_password", next)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(u).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// List returns one page of users
func (s *Service) List(ctx context.Context, q models.UserListQuery) ([]schema.User, models.PaginationInfo, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = 20
	}

	query := s.db.WithContext(ctx).Model(&schema.User{})
	if q.Role != "" {
		query = query.Where("role = ?", q.Role)
	}
	if q.IsActive != nil {
		query = query.Where("is_active = ?", *q.IsActive)
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, models.PaginationInfo{}, fmt.Errorf("failed to count users: %w", err)
	}

	var out []schema.User
	err := query.Order("created_at DESC").Order("id DESC").
		Limit(q.Limit).Offset((q.Page - 1) * q.Limit).
		Find(&out).Error
	if err != nil {
		return nil, models.PaginationInfo{}, fmt.Errorf("failed to list users: %w", err)
	}
	return out, models.NewPaginationInfo(q.Page, q.Limit, total), nil
}

// Agents lists agents with their open lead counts
func (s *Service) Agents(ctx context.Context, activeOnly bool) ([]models.AgentSummary, error) {
	return s.assignments.Workloads(ctx, activeOnly)
}

// Update applies req to user id on behalf of actor. Non-admins may only edit
// their own full_name and phone; admins may not demote or disable themselves.
func (s *Service) Update(ctx context.Context, actor session.Identity, id uint, req models.UserUpdateRequest) (*schema.User, error) {
	self := actor.ID == id
	if !actor.Can(session.ManageUsers) {
		if !self {
			return nil, domain.NewForbiddenError("You can only update your own profile")
		}
		if !req.OnlyProfileFields() {
			return nil, domain.NewForbiddenError("You can only update your name and phone")
		}
	}
	if self && actor.IsAdmin() {
		if req.Role != nil && schema.Role(*req.Role) != schema.RoleAdmin {
			return nil, domain.NewBadRequestError("You cannot change your own role")
		}
		if req.IsActive != nil && !*req.IsActive {
			return nil, domain.NewBadRequestError("You cannot deactivate your own account")
		}
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email != u.Email {
			taken, err := s.emailTaken(ctx, email, id)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, domain.NewConflictError("User with this email already exists")
			}
			updates["email"] = email
		}
	}
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if req.Phone != nil {
		updates["phone"] = s.phones.NormalizeOrKeep(*req.Phone)
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.MaxLeads != nil {
		updates["max_leads"] = *req.MaxLeads
	}
	if req.Password != nil {
		hash, err := hashPassword("password", *req.Password)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(u).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}
	return s.GetByID(ctx, id)
}

// Delete removes user id. Their leads are unassigned, never deleted.
func (s *Service) Delete(ctx context.Context, actorID, id uint) (int64, error) {
	if actorID == id {
		return 0, domain.NewBadRequestError("You cannot delete your own account")
	}

	var unassigned int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u schema.User
		if err := tx.First(&u, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("User")
			}
			return fmt.Errorf("failed to fetch user: %w", err)
		}

		n, err := s.assignments.UnassignAll(tx, id)
		if err != nil {
			return err
		}
		unassigned = n

		if err := tx.Where("user_id = ?", id).Delete(&schema.Notification{}).Error; err != nil {
			return fmt.Errorf("failed to delete notifications: %w", err)
		}
		if err := tx.Model(&schema.LeadActivity{}).Where("user_id = ?", id).
			Update("user_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach activities: %w", err)
		}
		if err := tx.Delete(&u).Error; err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return unassigned, nil
}
