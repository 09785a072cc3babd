// Package secrets resolves sensitive configuration values from the process
// environment or from AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/jordanlanch/estatecrm/pkg/logger"
)

// ErrNotFound is returned when a key has no value in the backend.
var ErrNotFound = errors.New("secret not found")

// Manager looks up secrets by key.
type Manager interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend       string // "env" or "aws"
	AWSRegion     string
	SecretID      string // AWS secret holding a JSON object of key/value pairs
	CacheDuration time.Duration
}

// NewManager creates the manager for cfg.Backend.
func NewManager(cfg Config, log logger.Logger) (Manager, error) {
	log = logger.OrNop(log)
	switch cfg.Backend {
	case "", "env", "environment":
		return EnvManager{}, nil
	case "aws", "aws-secrets-manager":
		if cfg.SecretID == "" {
			return nil, errors.New("secrets: AWS backend requires a secret id")
		}
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		log.Info("using AWS Secrets Manager", "region", cfg.AWSRegion, "secret_id", cfg.SecretID)
		return NewAWSManager(secretsmanager.New(sess), cfg.SecretID, cfg.CacheDuration), nil
	default:
		return nil, fmt.Errorf("unsupported secrets backend: %s", cfg.Backend)
	}
}

// EnvManager reads secrets from environment variables.
type EnvManager struct{}

func (EnvManager) GetSecret(_ context.Context, key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

// AWSManager reads keys out of a single JSON secret and caches the decoded
// document for the configured duration.
type AWSManager struct {
	client   secretsmanageriface.SecretsManagerAPI
	secretID string
	ttl      time.Duration

	mu      sync.Mutex
	values  map[string]string
	expires time.Time
}

// NewAWSManager wraps an existing Secrets Manager client.
func NewAWSManager(client secretsmanageriface.SecretsManagerAPI, secretID string, ttl time.Duration) *AWSManager {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AWSManager{client: client, secretID: secretID, ttl: ttl}
}

func (m *AWSManager) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.values == nil || time.Now().After(m.expires) {
		if err := m.load(ctx); err != nil {
			return "", err
		}
	}
	v, ok := m.values[key]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

// Invalidate drops the cached document so the next lookup refetches it.
func (m *AWSManager) Invalidate() {
	m.mu.Lock()
	m.values = nil
	m.mu.Unlock()
}

func (m *AWSManager) load(ctx context.Context) error {
	out, err := m.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(m.secretID),
	})
	if err != nil {
		return fmt.Errorf("failed to get secret %s: %w", m.secretID, err)
	}
	if out.SecretString == nil {
		return fmt.Errorf("secret %s has no string value", m.secretID)
	}

	values := map[string]string{}
	if err := json.Unmarshal([]byte(*out.SecretString), &values); err != nil {
		return fmt.Errorf("secret %s is not a JSON object: %w", m.secretID, err)
	}
	m.values = values
	m.expires = time.Now().Add(m.ttl)
	return nil
}

// Lookup returns the secret for key, or "" with a nil error when the key is
// simply absent.
func Lookup(ctx context.Context, m Manager, key string) (string, error) {
	v, err := m.GetSecret(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
