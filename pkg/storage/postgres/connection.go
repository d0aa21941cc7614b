package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq" // PostgreSQL driver

	"github.com/platinummonkey/jwtpizza/pkg/storage"
)

// Postgres error codes mapped to storage sentinels
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Open connects to PostgreSQL, configures the pool and verifies the
// connection within config.PostgresTimeout
func Open(ctx context.Context, config storage.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	configurePool(db, config)

	pingCtx := ctx
	if config.PostgresTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, config.PostgresTimeout)
		defer cancel()
	}

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func configurePool(db *sql.DB, config storage.Config) {
	if config.PostgresMaxConns > 0 {
		db.SetMaxOpenConns(config.PostgresMaxConns)
	}
	if config.PostgresMinConns > 0 {
		db.SetMaxIdleConns(config.PostgresMinConns)
	}
	db.SetConnMaxLifetime(config.PostgresMaxLifetime)
	db.SetConnMaxIdleTime(config.PostgresMaxIdleTime)
}

// translateError maps constraint violations to storage.ErrDuplicate and
// storage.ErrNotFound, keeping the driver error in the chain
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case uniqueViolation:
		return fmt.Errorf("%w: %s", storage.ErrDuplicate, pqErr.Message)
	case foreignKeyViolation:
		return fmt.Errorf("%w: %s", storage.ErrNotFound, pqErr.Message)
	default:
		return err
	}
}

// likePattern turns a '*' wildcard filter into a LIKE pattern
func likePattern(filter string) string {
	if filter == "" {
		return "%"
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(filter)
	return strings.ReplaceAll(escaped, "*", "%")
}
