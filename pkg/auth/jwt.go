package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jordanlanch/estatecrm/pkg/schema"
)

// Token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrRevokedToken = errors.New("token has been revoked")
)

const issuer = "estatecrm"

// Claims represents JWT claims
type Claims struct {
	UserID   uint        `json:"user_id"`
	Email    string      `json:"email"`
	Role     schema.Role `json:"role"`
	FullName string      `json:"full_name"`
	jwt.RegisteredClaims
}

// GenerateJWT signs an HS256 token for user valid for ttl.
func GenerateJWT(user *schema.User, secret string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func keyFunc(secret string) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}
}

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, keyFunc(secret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// ValidateJWTForRefresh accepts a correctly signed token that expired less
// than grace ago.
func ValidateJWTForRefresh(tokenString, secret string, grace time.Duration) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, keyFunc(secret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	if time.Since(claims.ExpiresAt.Time) > grace {
		return nil, ErrExpiredToken
	}
	return claims, nil
}

// Tokens issues, verifies, refreshes and revokes access tokens.
type Tokens struct {
	secret    string
	ttl       time.Duration
	grace     time.Duration
	blacklist *TokenBlacklist
}

// NewTokens creates a token service. blacklist may be nil.
func NewTokens(secret string, ttl, refreshGrace time.Duration, blacklist *TokenBlacklist) *Tokens {
	return &Tokens{secret: secret, ttl: ttl, grace: refreshGrace, blacklist: blacklist}
}

// TTL is the lifetime of issued tokens.
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for user.
func (t *Tokens) Issue(user *schema.User) (string, time.Time, error) {
	return GenerateJWT(user, t.secret, t.ttl)
}

// Verify validates signature and expiry, then checks the blacklist.
func (t *Tokens) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := ValidateJWT(tokenString, t.secret)
	if err != nil {
		return nil, err
	}
	if err := t.checkRevoked(ctx, tokenString); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyForRefresh is Verify with the refresh grace window applied to expiry.
func (t *Tokens) VerifyForRefresh(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := ValidateJWTForRefresh(tokenString, t.secret, t.grace)
	if err != nil {
		return nil, err
	}
	if err := t.checkRevoked(ctx, tokenString); err != nil {
		return nil, err
	}
	return claims, nil
}

// Revoke blacklists tokenString until it would have expired.
func (t *Tokens) Revoke(ctx context.Context, tokenString string, claims *Claims) error {
	if t.blacklist == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	remaining := time.Until(claims.ExpiresAt.Time) + t.grace
	if remaining <= 0 {
		return nil
	}
	return t.blacklist.Add(ctx, tokenString, remaining)
}

func (t *Tokens) checkRevoked(ctx context.Context, tokenString string) error {
	if t.blacklist == nil {
		return nil
	}
	revoked, err := t.blacklist.IsBlacklisted(ctx, tokenString)
	if err != nil {
		return fmt.Errorf("failed to check blacklist: %w", err)
	}
	if revoked {
		return ErrRevokedToken
	}
	return nil
}
