// Package token seals values into signed, expiring, url safe strings.
//
// Tokens are HS256 JWTs carrying a JSON payload. Only the holder of the
// symmetric key can create or verify them; the payload is not encrypted, so
// never put secrets in it that the client must not see.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

var (
	IssuedTimeKey  = contextKey("issued")
	ExpiresTimeKey = contextKey("expires")
)

var ErrorExpired = errors.New("token expired")

// TypeEncoder encodes and decodes arbitrary values.
type TypeEncoder struct {
	key      []byte
	issuer   string
	lifetime time.Duration
	now      func() time.Time
}

type Modifier func(*TypeEncoder)

// WithLifetime sets for how long tokens are valid. Zero means forever.
func WithLifetime(lifetime time.Duration) Modifier {
	return func(te *TypeEncoder) {
		te.lifetime = lifetime
	}
}

// WithIssuer namespaces tokens, so a token for one purpose cannot be used for another.
func WithIssuer(issuer string) Modifier {
	return func(te *TypeEncoder) {
		te.issuer = issuer
	}
}

// WithTimeSource overrides the clock, for tests.
func WithTimeSource(now func() time.Time) Modifier {
	return func(te *TypeEncoder) {
		te.now = now
	}
}

// NewTypeEncoder creates a TypeEncoder signing with key.
func NewTypeEncoder(key []byte, mods ...Modifier) (*TypeEncoder, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("symmetric key must be at least 32 bytes, got %d", len(key))
	}
	te := &TypeEncoder{key: key, now: time.Now}
	for _, m := range mods {
		m(te)
	}
	return te, nil
}

type claims struct {
	jwt.RegisteredClaims
	Payload json.RawMessage `json:"p"`
}

// Encode serializes value as JSON and signs it.
func (te *TypeEncoder) Encode(value interface{}) ([]byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	now := te.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   te.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Payload: payload,
	}
	if te.lifetime > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(te.lifetime))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(te.key)
	if err != nil {
		return nil, err
	}
	return []byte(signed), nil
}

// Decode verifies data and unmarshals its payload into value.
//
// The returned context carries the IssuedTimeKey and ExpiresTimeKey values.
func (te *TypeEncoder) Decode(ctx context.Context, data []byte, value interface{}) (context.Context, error) {
	var c claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(te.now),
		jwt.WithIssuedAt(),
	}
	if te.issuer != "" {
		opts = append(opts, jwt.WithIssuer(te.issuer))
	}

	_, err := jwt.ParseWithClaims(string(data), &c, func(*jwt.Token) (interface{}, error) {
		return te.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ctx, ErrorExpired
		}
		return ctx, fmt.Errorf("invalid token - %w", err)
	}

	if c.IssuedAt != nil {
		ctx = context.WithValue(ctx, IssuedTimeKey, c.IssuedAt.Time)
	}
	if c.ExpiresAt != nil {
		ctx = context.WithValue(ctx, ExpiresTimeKey, c.ExpiresAt.Time)
	}
	if err := json.Unmarshal(c.Payload, value); err != nil {
		return ctx, fmt.Errorf("invalid token payload - %w", err)
	}
	return ctx, nil
}

// GenerateSymmetricKey returns a random key of the specified number of bits.
func GenerateSymmetricKey(rng io.Reader, bits int) ([]byte, error) {
	if bits <= 0 || bits%8 != 0 {
		return nil, fmt.Errorf("invalid key size %d - must be a positive multiple of 8", bits)
	}
	key := make([]byte, bits/8)
	if _, err := io.ReadFull(rng, key); err != nil {
		return nil, err
	}
	return key, nil
}
