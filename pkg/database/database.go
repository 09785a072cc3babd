package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dialects understood by Open.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Client holds the database client
type Client struct {
	DB      *gorm.DB
	db      *sql.DB // Underlying database for pool stats
	dialect string
}

// PoolConfig holds connection pool configuration
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// SSLConfig holds SSL/TLS configuration for postgres connections
type SSLConfig struct {
	Mode         string // disable, require, verify-ca, verify-full
	CertPath     string
	KeyPath      string
	RootCertPath string
}

// Options configures Open.
type Options struct {
	Pool     PoolConfig
	SSL      *SSLConfig
	Logger   logger.Logger
	LogLevel gormlogger.LogLevel
	// SkipMigrate disables AutoMigrate of the schema entities.
	SkipMigrate bool
}

// DefaultPoolConfig returns sensible defaults for connection pooling
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// Dialect reports which driver a DATABASE_URL selects.
func Dialect(databaseURL string) (string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database url scheme: %q", databaseURL)
	}
}

// BuildConnectionString builds a PostgreSQL connection string with SSL parameters
func BuildConnectionString(baseURL string, sslCfg *SSLConfig) (string, error) {
	if sslCfg == nil {
		return baseURL, nil
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse database URL: %w", err)
	}

	query := parsedURL.Query()
	if sslCfg.Mode != "" {
		query.Set("sslmode", sslCfg.Mode)
	}
	if sslCfg.CertPath != "" {
		query.Set("sslcert", sslCfg.CertPath)
	}
	if sslCfg.KeyPath != "" {
		query.Set("sslkey", sslCfg.KeyPath)
	}
	if sslCfg.RootCertPath != "" {
		query.Set("sslrootcert", sslCfg.RootCertPath)
	}
	parsedURL.RawQuery = query.Encode()

	return parsedURL.String(), nil
}

// SQLiteDSN turns a sqlite:// URL into a go-sqlite3 DSN with foreign keys enabled.
func SQLiteDSN(databaseURL string) string {
	dsn := strings.TrimPrefix(databaseURL, "sqlite://")
	if dsn == "" || dsn == ":memory:" {
		dsn = "file::memory:"
	}
	if strings.Contains(dsn, "_fk=") || strings.Contains(dsn, "_foreign_keys=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_fk=1"
}

// NewClient creates a database client with the default pool and no SSL overrides
func NewClient(databaseURL string, log logger.Logger) (*Client, error) {
	return Open(databaseURL, Options{Pool: DefaultPoolConfig(), Logger: log})
}

// Open connects to postgres (through lib/pq) or sqlite (through go-sqlite3),
// configures the pool and migrates the schema.
func Open(databaseURL string, opts Options) (*Client, error) {
	log := logger.OrNop(opts.Logger)

	dialect, err := Dialect(databaseURL)
	if err != nil {
		return nil, err
	}

	if opts.LogLevel == 0 {
		opts.LogLevel = gormlogger.Warn
	}
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(opts.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		gdb   *gorm.DB
		sqlDB *sql.DB
	)

	switch dialect {
	case DialectPostgres:
		connStr, err := BuildConnectionString(databaseURL, opts.SSL)
		if err != nil {
			return nil, fmt.Errorf("failed building connection string: %w", err)
		}
		if opts.SSL != nil && opts.SSL.Mode != "" && opts.SSL.Mode != "disable" {
			log.Info("database SSL enabled", "mode", opts.SSL.Mode, "root_cert", opts.SSL.RootCertPath)
		}

		sqlDB, err = sql.Open("postgres", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed opening connection to postgres: %w", err)
		}
		pool := opts.Pool
		if pool.MaxOpenConns == 0 {
			pool = DefaultPoolConfig()
		}
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
		log.Info("database connection pool configured",
			"max_open", pool.MaxOpenConns, "max_idle", pool.MaxIdleConns,
			"max_lifetime", pool.ConnMaxLifetime.String(), "max_idle_time", pool.ConnMaxIdleTime.String())

		gdb, err = gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormCfg)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed opening gorm on postgres: %w", err)
		}

	case DialectSQLite:
		gdb, err = gorm.Open(sqlite.Open(SQLiteDSN(databaseURL)), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed opening sqlite: %w", err)
		}
		sqlDB, err = gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("failed getting sqlite handle: %w", err)
		}
		// A single connection keeps in-memory databases shared and serialises writers.
		sqlDB.SetMaxOpenConns(1)
	}

	client := &Client{DB: gdb, db: sqlDB, dialect: dialect}

	if !opts.SkipMigrate {
		if err := client.Migrate(); err != nil {
			_ = client.Close()
			return nil, err
		}
		log.Info("database connected and migrations applied", "dialect", dialect)
	}

	return client, nil
}

// Migrate creates or updates the tables for every schema entity.
func (c *Client) Migrate() error {
	if err := c.DB.AutoMigrate(schema.All()...); err != nil {
		return fmt.Errorf("failed creating schema resources: %w", err)
	}
	return nil
}

// Dialect returns the driver in use.
func (c *Client) Dialect() string {
	return c.dialect
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping checks if the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Stats returns database connection pool statistics
func (c *Client) Stats() sql.DBStats {
	return c.db.Stats()
}

// WithContext returns a gorm session bound to ctx.
func (c *Client) WithContext(ctx context.Context) *gorm.DB {
	return c.DB.WithContext(ctx)
}
