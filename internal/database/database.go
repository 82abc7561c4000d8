// Package database owns the PostgreSQL connection pool and the error
// classification shared by every repository.
package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gomem/gomem/pkg/observability"
)

// Common errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key violation")
	ErrForeignKey   = errors.New("foreign key violation")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// ClassifyError maps a driver error onto the package error vars. Unknown
// errors pass through unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicateKey, pqErr.Constraint)
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrForeignKey, pqErr.Constraint)
		}
	}
	return err
}

// IsUniqueViolation reports whether err is a unique-constraint violation.
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsForeignKeyViolation reports whether err is a foreign-key violation.
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKey)
}

// Config holds the connection settings for the pool.
type Config struct {
	// URL is a postgres:// connection URL. Username and Password, when set,
	// are injected into it so credentials can come from the environment
	// separately from the address.
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c Config) withDefaults() Config {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	return c
}

// DSN resolves the final connection string with credentials applied.
func (c Config) DSN() (string, error) {
	if c.URL == "" {
		return "", errors.New("database url is required")
	}
	if c.Username == "" && c.Password == "" {
		return c.URL, nil
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}
	switch {
	case c.Password != "":
		username := c.Username
		if username == "" && u.User != nil {
			username = u.User.Username()
		}
		u.User = url.UserPassword(username, c.Password)
	default:
		u.User = url.User(c.Username)
	}
	return u.String(), nil
}

// sanitizeDSN removes credentials from a DSN for safe logging.
func sanitizeDSN(dsn string) string {
	if idx := strings.Index(dsn, "://"); idx != -1 {
		if atIdx := strings.Index(dsn[idx:], "@"); atIdx != -1 {
			return dsn[:idx+3] + "***:***" + dsn[idx+atIdx:]
		}
	}
	if strings.Contains(dsn, "password=") {
		parts := strings.Split(dsn, " ")
		for i, part := range parts {
			if strings.HasPrefix(part, "password=") {
				parts[i] = "password=***"
			}
		}
		return strings.Join(parts, " ")
	}
	return dsn
}

// Connect opens the pool, applies sizing, and verifies connectivity.
func Connect(ctx context.Context, cfg Config, logger observability.Logger) (*sqlx.DB, error) {
	cfg = cfg.withDefaults()

	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	logger.Info("connecting to database", map[string]interface{}{
		"dsn": sanitizeDSN(dsn),
	})

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// Transaction runs fn inside a transaction, committing on nil and rolling
// back on error. Rollback failures are logged, not returned.
func Transaction(ctx context.Context, db *sqlx.DB, logger observability.Logger, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Warn("transaction rollback failed", map[string]interface{}{
				"error": rbErr.Error(),
			})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
