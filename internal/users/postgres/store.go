// Package postgres provides a Postgres-backed user store over pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
)

// Config controls the Postgres connection pool for user rows.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the subset of pgxpool.Pool the store needs; pgxmock satisfies
// it in tests.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Store reads and writes the subscription/usage columns of the users table.
// The table schema itself is owned by the surrounding application.
type Store struct {
	pool querier
}

// New connects a pool and verifies it with a ping.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool (or mock) without connecting.
func NewWithPool(pool querier) *Store {
	return &Store{pool: pool}
}

const selectColumns = `id, api_key, tier, status, stripe_customer_id, subscription_expires_at,
	screenshots_used, batches_used, api_calls_used, usage_reset_at`

// GetUser fetches a user row by ID.
func (s *Store) GetUser(ctx context.Context, id string) (screenshot.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByAPIKey fetches a user row by API key.
func (s *Store) GetUserByAPIKey(ctx context.Context, apiKey string) (screenshot.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM users WHERE api_key = $1`, apiKey)
	return scanUser(row)
}

// SaveUser writes back the mutable subscription and usage fields.
func (s *Store) SaveUser(ctx context.Context, user screenshot.User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET tier = $2,
		    status = $3,
		    stripe_customer_id = $4,
		    subscription_expires_at = $5,
		    screenshots_used = $6,
		    batches_used = $7,
		    api_calls_used = $8,
		    usage_reset_at = $9
		WHERE id = $1`,
		user.ID,
		string(user.Tier),
		string(user.Status),
		nullString(user.StripeCustomerID),
		user.ExpiresAt,
		user.Usage.Screenshots,
		user.Usage.Batches,
		user.Usage.APICalls,
		user.UsageResetAt,
	)
	if err != nil {
		return fmt.Errorf("update user %s: %w", user.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return screenshot.ErrUserNotFound
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func scanUser(row pgx.Row) (screenshot.User, error) {
	var (
		user     screenshot.User
		tier     string
		status   string
		stripeID *string
		expires  *time.Time
	)
	err := row.Scan(
		&user.ID,
		&user.APIKey,
		&tier,
		&status,
		&stripeID,
		&expires,
		&user.Usage.Screenshots,
		&user.Usage.Batches,
		&user.Usage.APICalls,
		&user.UsageResetAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return screenshot.User{}, screenshot.ErrUserNotFound
		}
		return screenshot.User{}, fmt.Errorf("scan user row: %w", err)
	}
	user.Tier = screenshot.Tier(tier)
	user.Status = screenshot.SubscriptionStatus(status)
	if stripeID != nil {
		user.StripeCustomerID = *stripeID
	}
	user.ExpiresAt = expires
	return user, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
