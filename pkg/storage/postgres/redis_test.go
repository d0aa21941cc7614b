package postgres

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jwtpizza/pkg/storage"
)

func setupRedisLedgerTest(t *testing.T) (*RedisLedger, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	config := storage.DefaultConfig()
	config.RedisURL = "redis://" + mr.Addr()

	ledger, err := NewRedisLedger(context.Background(), config)
	require.NoError(t, err)

	t.Cleanup(func() {
		ledger.Close()
		mr.Close()
	})
	return ledger, mr
}

func TestNewRedisLedger_InvalidURL(t *testing.T) {
	_, err := NewRedisLedger(context.Background(), storage.Config{RedisURL: "invalid://url"})
	assert.Error(t, err)
}

func TestRedisLedger_Lifecycle(t *testing.T) {
	ctx := context.Background()
	ledger, mr := setupRedisLedgerTest(t)

	require.NoError(t, ledger.Record(ctx, "token-a", 1, time.Now().Add(time.Hour)))
	require.NoError(t, ledger.Record(ctx, "token-b", 1, time.Now().Add(time.Hour)))

	active, err := ledger.IsActive(ctx, "token-a")
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, ledger.Revoke(ctx, "token-a"))
	active, err = ledger.IsActive(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, active)

	// revoking twice is harmless
	require.NoError(t, ledger.Revoke(ctx, "token-a"))

	active, err = ledger.IsActive(ctx, "token-b")
	require.NoError(t, err)
	assert.True(t, active)

	mr.FastForward(2 * time.Hour)
	active, err = ledger.IsActive(ctx, "token-b")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRedisLedger_RevokeUser(t *testing.T) {
	ctx := context.Background()
	ledger, mr := setupRedisLedgerTest(t)

	require.NoError(t, ledger.Record(ctx, "token-a", 1, time.Now().Add(time.Hour)))
	require.NoError(t, ledger.Record(ctx, "token-b", 1, time.Now().Add(time.Hour)))
	require.NoError(t, ledger.Record(ctx, "token-c", 2, time.Now().Add(time.Hour)))

	require.NoError(t, ledger.RevokeUser(ctx, 1))

	for _, token := range []string{"token-a", "token-b"} {
		active, err := ledger.IsActive(ctx, token)
		require.NoError(t, err)
		assert.False(t, active, token)
	}
	active, err := ledger.IsActive(ctx, "token-c")
	require.NoError(t, err)
	assert.True(t, active)
	assert.False(t, mr.Exists("pizza:user:1:tokens"))
}

func TestRedisLedger_ExpiredTokenNotRecorded(t *testing.T) {
	ctx := context.Background()
	ledger, mr := setupRedisLedgerTest(t)

	require.NoError(t, ledger.Record(ctx, "stale", 1, time.Now().Add(-time.Minute)))
	assert.Empty(t, mr.Keys())

	require.NoError(t, ledger.Ping(ctx))
	assert.NotNil(t, ledger.Client())
}

func TestRedisLedger_UserSetDoesNotGrow(t *testing.T) {
	ctx := context.Background()
	ledger, mr := setupRedisLedgerTest(t)
	userKey := "pizza:user:7:tokens"

	for i := 0; i < 50; i++ {
		token := "token-" + strconv.Itoa(i)
		require.NoError(t, ledger.Record(ctx, token, 7, time.Now().Add(time.Hour)))
		require.NoError(t, ledger.Revoke(ctx, token))
	}
	assert.False(t, mr.Exists(userKey), "empty set is removed")

	require.NoError(t, ledger.Record(ctx, "short", 7, time.Now().Add(time.Minute)))
	require.NoError(t, ledger.Record(ctx, "long", 7, time.Now().Add(time.Hour)))
	members, err := mr.SMembers(userKey)
	require.NoError(t, err)
	assert.Len(t, members, 2)
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL(userKey).Seconds(), 5)

	// a shorter token does not cut the set's lifetime
	require.NoError(t, ledger.Record(ctx, "shorter", 7, time.Now().Add(time.Minute)))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL(userKey).Seconds(), 5)

	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists(userKey))
}
