package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jordanlanch/estatecrm/pkg/cache"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key-minimum-32-characters-long"

func testUser() *schema.User {
	return &schema.User{ID: 42, Email: "agent@example.com", Role: schema.RoleAgent, FullName: "Ana Agent"}
}

func setupTestRedis(t *testing.T) (*cache.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestGenerateAndValidateJWT(t *testing.T) {
	token, expiresAt, err := GenerateJWT(testUser(), testSecret, 24*time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

	claims, err := ValidateJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "agent@example.com", claims.Email)
	assert.Equal(t, schema.RoleAgent, claims.Role)
	assert.Equal(t, "Ana Agent", claims.FullName)
	assert.Equal(t, "42", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateJWT_Invalid(t *testing.T) {
	_, err := ValidateJWT("invalid.token.here", testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ValidateJWT("", testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, _, err := GenerateJWT(testUser(), testSecret, time.Hour)
	require.NoError(t, err)
	_, err = ValidateJWT(token, "wrong-secret-key-minimum-32-characters-long")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateJWT_Expired(t *testing.T) {
	token, _, err := GenerateJWT(testUser(), testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateJWT(token, testSecret)
	assert.ErrorIs(t, err, ErrExpiredToken)

	claims, err := ValidateJWTForRefresh(token, testSecret, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)

	_, err = ValidateJWTForRefresh(token, testSecret, time.Second)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokens_RevokeAndVerify(t *testing.T) {
	client, _ := setupTestRedis(t)
	tokens := NewTokens(testSecret, time.Hour, time.Hour, NewTokenBlacklist(client))
	ctx := context.Background()

	token, _, err := tokens.Issue(testUser())
	require.NoError(t, err)

	claims, err := tokens.Verify(ctx, token)
	require.NoError(t, err)

	require.NoError(t, tokens.Revoke(ctx, token, claims))

	_, err = tokens.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrRevokedToken)

	_, err = tokens.VerifyForRefresh(ctx, token)
	assert.ErrorIs(t, err, ErrRevokedToken)
}

func TestTokens_WithoutBlacklist(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour, 0, nil)
	ctx := context.Background()

	token, _, err := tokens.Issue(testUser())
	require.NoError(t, err)

	claims, err := tokens.Verify(ctx, token)
	require.NoError(t, err)
	assert.NoError(t, tokens.Revoke(ctx, token, claims))

	_, err = tokens.Verify(ctx, token)
	assert.NoError(t, err)
	assert.Equal(t, time.Hour, tokens.TTL())
}

func TestTokenBlacklist_Expiration(t *testing.T) {
	client, mr := setupTestRedis(t)
	blacklist := NewTokenBlacklist(client)
	ctx := context.Background()

	require.NoError(t, blacklist.Add(ctx, "a.b.c", time.Minute))
	revoked, err := blacklist.IsBlacklisted(ctx, "a.b.c")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = blacklist.IsBlacklisted(ctx, "x.y.z")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = blacklist.IsBlacklisted(ctx, "a.b.c")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cure-passw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cure-passw0rd", hash)

	assert.True(t, CheckPassword(hash, "s3cure-passw0rd"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "s3cure-passw0rd"))
	assert.False(t, NeedsRehash(hash))

	_, err = HashPassword(strings.Repeat("é", 40))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	cheap, err := bcrypt.GenerateFromPassword([]byte("s3cure-passw0rd"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, NeedsRehash(string(cheap)))
	assert.True(t, NeedsRehash("not-a-hash"))
}
