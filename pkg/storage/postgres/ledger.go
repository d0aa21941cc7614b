package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/jwtpizza/pkg/auth"
)

// LedgerRepository implements auth.Ledger and auth.LedgerSweeper on the
// token_ledger table. Every method is a single statement.
type LedgerRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewLedgerRepository creates a token ledger
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db, now: time.Now}
}

// Record stores the hash of token until expiresAt
func (l *LedgerRepository) Record(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO token_ledger (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`, auth.HashToken(token), userID, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to record token: %w", err)
	}
	return nil
}

// Revoke deletes token. Deleting an absent token succeeds.
func (l *LedgerRepository) Revoke(ctx context.Context, token string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM token_ledger WHERE token_hash = $1`, auth.HashToken(token)); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsActive reports whether token is recorded and not yet expired
func (l *LedgerRepository) IsActive(ctx context.Context, token string) (bool, error) {
	var active bool
	err := l.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM token_ledger WHERE token_hash = $1 AND expires_at > $2)`,
		auth.HashToken(token), l.now(),
	).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return active, nil
}

// RevokeUser deletes every token issued to userID
func (l *LedgerRepository) RevokeUser(ctx context.Context, userID int64) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM token_ledger WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}

// PurgeExpired deletes tokens that expired at or before now
func (l *LedgerRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM token_ledger WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purged rows: %w", err)
	}
	return n, nil
}
