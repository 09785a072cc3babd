package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/jordanlanch/estatecrm/pkg/metrics"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"gorm.io/gorm"
)

// EventNotification is the websocket event type carrying a new notification.
const EventNotification = "notification"

// Service stores per-user notifications and pushes them to the hub.
type Service struct {
	db      *gorm.DB
	hub     *Hub
	metrics *metrics.Metrics
	log     logger.Logger
	now     func() time.Time
}

// NewService creates a notification service. hub may be nil.
func NewService(db *gorm.DB, hub *Hub, m *metrics.Metrics, log logger.Logger) *Service {
	return &Service{
		db:      db,
		hub:     hub,
		metrics: m,
		log:     logger.OrNop(log),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var _ domain.Notifier = (*Service)(nil)

// Notify stores n and pushes it to the recipient's open sockets.
func (s *Service) Notify(ctx context.Context, n *schema.Notification) error {
	if n.UserID == 0 {
		return domain.NewBadRequestError("notification requires a recipient")
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	s.publish(n)
	return nil
}

// NotifyAdmins sends a copy of n to every active admin.
func (s *Service) NotifyAdmins(ctx context.Context, n schema.Notification) error {
	var admins []uint
	err := s.db.WithContext(ctx).Model(&schema.User{}).
		Where("role = ? AND is_active = ?", schema.RoleAdmin, true).
		Pluck("id", &admins).Error
	if err != nil {
		return fmt.Errorf("failed to fetch admins: %w", err)
	}
	if len(admins) == 0 {
		return nil
	}

	rows := make([]schema.Notification, len(admins))
	for i, id := range admins {
		rows[i] = n
		rows[i].ID = 0
		rows[i].UserID = id
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to create notifications: %w", err)
	}
	for i := range rows {
		s.publish(&rows[i])
	}
	return nil
}

func (s *Service) publish(n *schema.Notification) {
	s.metrics.RecordNotification(string(n.Type))
	if s.hub == nil {
		return
	}
	if delivered := s.hub.Publish(n.UserID, Event{Type: EventNotification, Data: n}); delivered > 0 {
		s.log.Debug("notification pushed", "user_id", n.UserID, "sockets", delivered)
	}
}

// List returns a page of userID's notifications, newest first.
func (s *Service) List(ctx context.Context, userID uint, q models.NotificationListQuery) (*models.NotificationListResponse, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = 20
	}

	query := s.db.WithContext(ctx).Model(&schema.Notification{}).Where("user_id = ?", userID)
	if q.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	var rows []schema.Notification
	err := query.Order("created_at DESC").Order("id DESC").
		Limit(q.Limit).Offset((q.Page - 1) * q.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.NotificationListResponse{
		Data:        rows,
		Pagination:  models.NewPaginationInfo(q.Page, q.Limit, total),
		UnreadCount: unread,
	}, nil
}

// UnreadCount returns how many unread notifications userID has.
func (s *Service) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&schema.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

func (s *Service) own(ctx context.Context, userID, id uint) (*schema.Notification, error) {
	var n schema.Notification
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Notification")
		}
		return nil, fmt.Errorf("failed to fetch notification: %w", err)
	}
	return &n, nil
}

// MarkRead marks one of userID's notifications as read.
func (s *Service) MarkRead(ctx context.Context, userID, id uint) (*schema.Notification, error) {
	n, err := s.own(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}
	now := s.now()
	if err := s.db.WithContext(ctx).Model(n).Updates(map[string]any{"is_read": true, "read_at": now}).Error; err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n.IsRead = true
	n.ReadAt = &now
	return n, nil
}

// MarkAllRead marks every unread notification of userID as read.
func (s *Service) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&schema.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": s.now()})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes one of userID's notifications.
func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	n, err := s.own(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(n).Error; err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// PurgeRead deletes read notifications created before cutoff.
func (s *Service) PurgeRead(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff.UTC()).
		Delete(&schema.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}
