package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jwtpizza/pkg/auth"
)

func TestLedgerRepository(t *testing.T) {
	ctx := context.Background()
	token := "header.payload.signature"
	hash := auth.HashToken(token)
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("record stores the hash", func(t *testing.T) {
		db, mock := newMockDB(t)
		ledger := NewLedgerRepository(db)

		mock.ExpectExec("INSERT INTO token_ledger").
			WithArgs(hash, 1, expires).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, ledger.Record(ctx, token, 1, expires))
	})

	t.Run("is active", func(t *testing.T) {
		db, mock := newMockDB(t)
		ledger := NewLedgerRepository(db)
		now := time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC)
		ledger.now = func() time.Time { return now }

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(hash, now).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(hash, now).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		active, err := ledger.IsActive(ctx, token)
		require.NoError(t, err)
		assert.True(t, active)

		active, err = ledger.IsActive(ctx, token)
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("is active surfaces storage errors", func(t *testing.T) {
		db, mock := newMockDB(t)
		ledger := NewLedgerRepository(db)

		mock.ExpectQuery("SELECT EXISTS").WillReturnError(errors.New("connection refused"))

		_, err := ledger.IsActive(ctx, token)
		assert.Error(t, err)
	})

	t.Run("revoke and revoke user", func(t *testing.T) {
		db, mock := newMockDB(t)
		ledger := NewLedgerRepository(db)

		mock.ExpectExec("DELETE FROM token_ledger WHERE token_hash").
			WithArgs(hash).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM token_ledger WHERE user_id").
			WithArgs(9).
			WillReturnResult(sqlmock.NewResult(0, 3))

		assert.NoError(t, ledger.Revoke(ctx, token))
		assert.NoError(t, ledger.RevokeUser(ctx, 9))
	})

	t.Run("purge expired", func(t *testing.T) {
		db, mock := newMockDB(t)
		ledger := NewLedgerRepository(db)

		mock.ExpectExec("DELETE FROM token_ledger WHERE expires_at").
			WithArgs(expires).
			WillReturnResult(sqlmock.NewResult(0, 4))

		n, err := ledger.PurgeExpired(ctx, expires)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})
}
