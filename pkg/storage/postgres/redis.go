package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/storage"
)

// RedisLedger implements auth.Ledger on Redis. Each token hash is a key that
// expires with the token, and a per-user set tracks hashes for RevokeUser.
type RedisLedger struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisLedger connects to config.RedisURL and verifies the connection
func NewRedisLedger(ctx context.Context, config storage.Config) (*RedisLedger, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB > 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisLedgerFromClient(client, config.RedisKeyPrefix), nil
}

// NewRedisLedgerFromClient wraps an existing client
func NewRedisLedgerFromClient(client *redis.Client, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = storage.DefaultConfig().RedisKeyPrefix
	}
	return &RedisLedger{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisLedger) tokenKey(hash string) string {
	return fmt.Sprintf("%s:token:%s", l.prefix, hash)
}

func (l *RedisLedger) userKey(userID int64) string {
	return fmt.Sprintf("%s:user:%d:tokens", l.prefix, userID)
}

// Record stores the token hash until expiresAt. Tokens already expired are
// not recorded. The per-user set lives as long as the user's newest token.
func (l *RedisLedger) Record(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	ttl := expiresAt.Sub(l.now())
	if ttl <= 0 {
		return nil
	}

	userKey := l.userKey(userID)
	current, err := l.client.PTTL(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read user token expiry: %w", err)
	}

	hash := auth.HashToken(token)
	pipe := l.client.TxPipeline()
	pipe.Set(ctx, l.tokenKey(hash), userID, ttl)
	pipe.SAdd(ctx, userKey, hash)
	// -1 and -2 mean no expiry and no key
	if current < ttl {
		pipe.PExpire(ctx, userKey, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record token: %w", err)
	}
	return nil
}

// Revoke deletes the token key and its entry in the owner's set. Revoking an
// unknown or expired token succeeds.
func (l *RedisLedger) Revoke(ctx context.Context, token string) error {
	hash := auth.HashToken(token)
	key := l.tokenKey(hash)

	owner, err := l.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	pipe := l.client.TxPipeline()
	pipe.Del(ctx, key)
	if userID, err := strconv.ParseInt(owner, 10, 64); err == nil {
		pipe.SRem(ctx, l.userKey(userID), hash)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsActive reports whether the token key still exists
func (l *RedisLedger) IsActive(ctx context.Context, token string) (bool, error) {
	n, err := l.client.Exists(ctx, l.tokenKey(auth.HashToken(token))).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return n > 0, nil
}

// RevokeUser deletes every token recorded for userID
func (l *RedisLedger) RevokeUser(ctx context.Context, userID int64) error {
	userKey := l.userKey(userID)
	hashes, err := l.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list user tokens: %w", err)
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, hash := range hashes {
		keys = append(keys, l.tokenKey(hash))
	}
	keys = append(keys, userKey)

	if err := l.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}

// Ping checks the connection
func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Client returns the underlying client for health checks
func (l *RedisLedger) Client() *redis.Client {
	return l.client
}

// Close closes the Redis connection
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
