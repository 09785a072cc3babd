package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/cache"
)

const blacklistPrefix = "jwt:blacklist:"

// TokenBlacklist stores revoked tokens in redis, keyed by their SHA-256.
type TokenBlacklist struct {
	cache *cache.Client
}

// NewTokenBlacklist creates a new token blacklist
func NewTokenBlacklist(c *cache.Client) *TokenBlacklist {
	return &TokenBlacklist{cache: c}
}

// Add revokes token for expiration.
func (b *TokenBlacklist) Add(ctx context.Context, token string, expiration time.Duration) error {
	return b.cache.Set(ctx, blacklistKey(token), "revoked", expiration)
}

// IsBlacklisted checks if a token is blacklisted
func (b *TokenBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	return b.cache.Exists(ctx, blacklistKey(token))
}

func blacklistKey(token string) string {
	hash := sha256.Sum256([]byte(token))
	return blacklistPrefix + hex.EncodeToString(hash[:])
}
