package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failures. All of them surface to clients as the same 401.
var (
	ErrNoCredential    = errors.New("no bearer credential")
	ErrTokenMalformed  = errors.New("token is malformed")
	ErrTokenSignature  = errors.New("token signature is invalid")
	ErrTokenExpired    = errors.New("token has expired")
	ErrTokenRevoked    = errors.New("token is not in the ledger")
	ErrUnknownSubject  = errors.New("token subject does not exist")
	errEmptySigningKey = errors.New("signing secret is empty")
)

// Claims carried by an issued token. The random ID keeps two tokens issued
// to the same user within one second distinct in the ledger.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 bearer tokens
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec creates a codec that issues tokens valid for ttl
func NewTokenCodec(secret []byte, ttl time.Duration) *TokenCodec {
	return &TokenCodec{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the time source, for tests
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

// TTL returns the validity window of issued tokens
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for userID and returns it with its expiry
func (c *TokenCodec) Issue(userID int64) (string, time.Time, error) {
	if len(c.secret) == 0 {
		return "", time.Time{}, errEmptySigningKey
	}

	issuedAt := c.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(c.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify returns the user id bound to token. It never panics: every
// failure is one of ErrTokenMalformed, ErrTokenSignature or ErrTokenExpired.
func (c *TokenCodec) Verify(token string) (int64, error) {
	if token == "" {
		return 0, ErrNoCredential
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return 0, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return 0, ErrTokenSignature
		default:
			return 0, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: subject %q is not a user id", ErrTokenMalformed, claims.Subject)
	}
	return userID, nil
}

// HashToken computes the SHA256 hash under which a token is kept in the ledger
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
