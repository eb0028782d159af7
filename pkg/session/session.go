package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log/slog"
)

// ErrSecretNotConfigured is returned when no signing secret is available.
// It is a server misconfiguration, not a rejected token.
var ErrSecretNotConfigured = errors.New("session secret not configured")

// ErrSessionTokenInvalid is returned when a presented token does not match the identity.
var ErrSessionTokenInvalid = errors.New("session token is invalid")

// Token is a session token minted for a Steam identity.
type Token string

// LogValue implements [log/slog.LogValuer].
func (t Token) LogValue() slog.Value {
	return slog.StringValue("REDACTED")
}

func (t Token) String() string {
	return string(t)
}

// Codec mints and verifies session tokens bound to a shared secret.
//
// A token is the unpadded URL-safe base64 of HMAC-SHA256(secret, identity).
// Tokens are deterministic and never expire: rotating the secret is the only
// way to revoke them.
type Codec struct {
	secret []byte
}

// NewCodec returns a Codec for secret. An empty secret is allowed; every
// operation then fails with ErrSecretNotConfigured.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Configured reports whether a signing secret is present.
func (c *Codec) Configured() bool {
	return c != nil && len(c.secret) > 0
}

// Mint returns the session token for identity.
func (c *Codec) Mint(identity string) (Token, error) {
	if !c.Configured() {
		return "", ErrSecretNotConfigured
	}
	return Token(mint(identity, c.secret)), nil
}

// Verify checks that token was minted for identity under the configured secret.
func (c *Codec) Verify(identity string, token string) error {
	if !c.Configured() {
		return ErrSecretNotConfigured
	}
	expected := mint(identity, c.secret)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrSessionTokenInvalid
	}
	return nil
}

// Mint is a convenience wrapper around [Codec.Mint].
func Mint(identity, secret string) (Token, error) {
	return NewCodec(secret).Mint(identity)
}

// Verify is a convenience wrapper around [Codec.Verify].
func Verify(identity, token, secret string) error {
	return NewCodec(secret).Verify(identity, token)
}

func mint(identity string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(identity))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
