package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
)

// Session is the signed-in state of one client instance: the token, the
// user it belongs to and the expiry. Pass it explicitly to the Client.
type Session struct {
	tokens *TokenManager
	store  Store

	mu   sync.RWMutex
	user *models.UserInfo
}

// NewSession creates a session persisted in store and obfuscated with fingerprint.
func NewSession(store Store, fingerprint string) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Session{tokens: NewTokenManager(store, fingerprint), store: store}
}

// Tokens exposes the token manager, for expiry monitoring.
func (s *Session) Tokens() *TokenManager {
	return s.tokens
}

// Start stores a freshly issued token and its user.
func (s *Session) Start(token string, user *models.UserInfo) error {
	if err := s.tokens.SetToken(token); err != nil {
		return err
	}
	return s.SetUser(user)
}

// SetUser replaces the stored user.
func (s *Session) SetUser(user *models.UserInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.user = nil
		return s.store.Delete(KeyUser)
	}
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := s.store.Set(KeyUser, string(data)); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	s.user = user
	return nil
}

// User returns the signed-in user, loading it from the store if needed.
func (s *Session) User() (*models.UserInfo, bool) {
	s.mu.RLock()
	u := s.user
	s.mu.RUnlock()
	if u != nil {
		return u, true
	}

	raw, ok, err := s.store.Get(KeyUser)
	if err != nil || !ok {
		return nil, false
	}
	var loaded models.UserInfo
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		return nil, false
	}
	s.mu.Lock()
	s.user = &loaded
	s.mu.Unlock()
	return &loaded, true
}

// Token returns the bearer token, or "" when signed out.
func (s *Session) Token() string {
	t, err := s.tokens.Token()
	if err != nil {
		return ""
	}
	return t
}

// ExpiresAt returns the token expiry.
func (s *Session) ExpiresAt() (time.Time, bool) {
	return s.tokens.Expiry()
}

// Authenticated reports whether a live token is held.
func (s *Session) Authenticated() bool {
	return !s.tokens.IsExpired()
}

// Role returns the signed-in user's role, or "" when unknown.
func (s *Session) Role() schema.Role {
	u, ok := s.User()
	if !ok {
		return ""
	}
	return u.Role
}

// IsAdmin reports whether the signed-in user is an admin.
func (s *Session) IsAdmin() bool {
	return s.Role() == schema.RoleAdmin
}

// Can reports whether the signed-in user was granted capability, as listed
// by the server at login.
func (s *Session) Can(capability string) bool {
	u, ok := s.User()
	if !ok {
		return false
	}
	for _, c := range u.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Clear signs out locally.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	if err := s.tokens.Clear(); err != nil {
		return err
	}
	return s.store.Delete(KeyUser)
}
