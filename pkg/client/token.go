// Package client is a typed Go client for the CRM API. It keeps the bearer
// token in a Store, obfuscated, and tracks its expiry.
package client

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRefreshThreshold is how long before expiry a token should be refreshed.
const DefaultRefreshThreshold = 5 * time.Minute

const defaultFingerprint = "estatecrm"

// ErrMalformedToken is returned for values that are not a JWT.
var ErrMalformedToken = errors.New("malformed token")

// Fingerprint derives a stable per-machine key from the host name, the
// platform and the home directory, plus any extra parts.
func Fingerprint(extra ...string) string {
	host, _ := os.Hostname()
	home, _ := os.UserHomeDir()
	h := sha256.New()
	for _, p := range append([]string{host, runtime.GOOS, runtime.GOARCH, home}, extra...) {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// xor applies key cyclically over data.
func xor(data []byte, key string) []byte {
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ key[i%len(key)]
	}
	return out
}

// Obfuscate hides value from casual inspection of the store. It is not encryption.
func Obfuscate(value, key string) string {
	if key == "" {
		key = defaultFingerprint
	}
	return base64.StdEncoding.EncodeToString(xor([]byte(value), key))
}

// Deobfuscate reverses Obfuscate.
func Deobfuscate(encoded, key string) (string, error) {
	if key == "" {
		key = defaultFingerprint
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode stored token: %w", err)
	}
	return string(xor(raw, key)), nil
}

// ParseExpiry reads the exp claim without verifying the signature. ok is
// false when the token carries no expiry.
func ParseExpiry(token string) (exp time.Time, ok bool, err error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	nd, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if nd == nil {
		return time.Time{}, false, nil
	}
	return nd.Time.UTC(), true, nil
}

// EventKind classifies monitor events.
type EventKind string

const (
	EventRefreshDue EventKind = "refresh_due"
	EventExpired    EventKind = "expired"
)

// ExpiryEvent is emitted by TokenManager.Monitor.
type ExpiryEvent struct {
	Kind      EventKind
	ExpiresAt time.Time
	At        time.Time
}

// TokenManager stores the bearer token obfuscated with a fingerprint and
// mirrors it in memory. It is safe for concurrent use.
type TokenManager struct {
	store       Store
	fingerprint string
	now         func() time.Time

	mu      sync.RWMutex
	loaded  bool
	token   string
	expiry  time.Time
	expires bool
}

// NewTokenManager creates a manager over store. An empty fingerprint uses a
// fixed default key.
func NewTokenManager(store Store, fingerprint string) *TokenManager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &TokenManager{store: store, fingerprint: fingerprint, now: time.Now}
}

// SetToken validates, persists and caches token.
func (m *TokenManager) SetToken(token string) error {
	exp, ok, err := ParseExpiry(token)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Set(KeyToken, Obfuscate(token, m.fingerprint)); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	if ok {
		if err := m.store.Set(KeyExpiry, exp.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("failed to store expiry: %w", err)
		}
	} else if err := m.store.Delete(KeyExpiry); err != nil {
		return fmt.Errorf("failed to store expiry: %w", err)
	}
	m.token, m.expiry, m.expires, m.loaded = token, exp, ok, true
	return nil
}

// load fills the cache from the store once. A value that no longer decodes
// to a JWT, for example after the fingerprint changed, is discarded.
func (m *TokenManager) load() error {
	m.mu.RLock()
	loaded := m.loaded
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}
	encoded, found, err := m.store.Get(KeyToken)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	m.loaded = true
	if !found {
		return nil
	}
	token, err := Deobfuscate(encoded, m.fingerprint)
	if err == nil {
		var exp time.Time
		var ok bool
		if exp, ok, err = ParseExpiry(token); err == nil {
			m.token, m.expiry, m.expires = token, exp, ok
			return nil
		}
	}
	return m.store.Delete(KeyToken, KeyExpiry)
}

// Token returns the current token, or "" when none is stored.
func (m *TokenManager) Token() (string, error) {
	if err := m.load(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

// Expiry returns when the token expires. ok is false without a token or an exp claim.
func (m *TokenManager) Expiry() (time.Time, bool) {
	if err := m.load(); err != nil {
		return time.Time{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expiry, m.token != "" && m.expires
}

// TimeUntilExpiry is negative once expired and zero without an expiry.
func (m *TokenManager) TimeUntilExpiry() time.Duration {
	exp, ok := m.Expiry()
	if !ok {
		return 0
	}
	return exp.Sub(m.now())
}

// IsExpired reports whether there is no usable token. Tokens without an
// exp claim never expire.
func (m *TokenManager) IsExpired() bool {
	token, err := m.Token()
	if err != nil || token == "" {
		return true
	}
	exp, ok := m.Expiry()
	return ok && !m.now().Before(exp)
}

// ShouldRefresh reports whether a live token expires within threshold.
func (m *TokenManager) ShouldRefresh(threshold time.Duration) bool {
	if m.IsExpired() {
		return false
	}
	exp, ok := m.Expiry()
	return ok && exp.Sub(m.now()) <= threshold
}

// Clear removes the token from memory and the store.
func (m *TokenManager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.expiry, m.expires, m.loaded = "", time.Time{}, false, true
	return m.store.Delete(KeyToken, KeyExpiry)
}

// Monitor checks the token every interval. It emits EventRefreshDue once per
// token when it enters the refresh threshold and EventExpired once when it
// expires. The channel is closed when ctx is done.
func (m *TokenManager) Monitor(ctx context.Context, interval, threshold time.Duration) <-chan ExpiryEvent {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	events := make(chan ExpiryEvent, 1)

	go func() {
		defer close(events)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var notifiedRefresh, notifiedExpired string
		check := func() bool {
			token, _ := m.Token()
			if token == "" {
				return true
			}
			exp, _ := m.Expiry()
			var ev *ExpiryEvent
			switch {
			case m.IsExpired() && notifiedExpired != token:
				notifiedExpired = token
				ev = &ExpiryEvent{Kind: EventExpired, ExpiresAt: exp, At: m.now()}
			case m.ShouldRefresh(threshold) && notifiedRefresh != token:
				notifiedRefresh = token
				ev = &ExpiryEvent{Kind: EventRefreshDue, ExpiresAt: exp, At: m.now()}
			}
			if ev == nil {
				return true
			}
			select {
			case events <- *ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !check() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !check() {
					return
				}
			}
		}
	}()
	return events
}
