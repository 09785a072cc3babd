package domain

import (
	"context"
	"io"

	"github.com/jordanlanch/estatecrm/pkg/schema"
)

// Notifier creates in-app notifications and pushes them to live streams
type Notifier interface {
	Notify(ctx context.Context, n *schema.Notification) error
	NotifyAdmins(ctx context.Context, n schema.Notification) error
}

// Mailer sends transactional email
type Mailer interface {
	SendLeadAssigned(ctx context.Context, agent *schema.User, lead *schema.Lead) error
	SendContactAcknowledgement(ctx context.Context, toEmail, toName string) error
	SendStaleLeadReminder(ctx context.Context, agent *schema.User, leads []schema.Lead) error
	SendAccountCreated(ctx context.Context, user *schema.User) error
}

// ChatResponder produces the assistant side of a chatbot conversation
type ChatResponder interface {
	Reply(ctx context.Context, history []schema.ChatMessage) (string, error)
	Name() string
}

// MediaStore persists uploaded property media
type MediaStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}
