// Package githubapp supplies bearer credentials for the GitHub REST API,
// either a static token or a short-lived App installation token.
package githubapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultAPIURL = "https://api.github.com/"

var (
	// ErrNotConfigured means no usable credential material was provided.
	ErrNotConfigured = errors.New("github credentials not configured")
	// ErrInvalidAppCredentials means the App id or private key cannot be used to sign.
	ErrInvalidAppCredentials = errors.New("invalid GitHub App credentials")
	// ErrUnreachable means the token exchange never got an HTTP response.
	ErrUnreachable = errors.New("failed to reach GitHub")
)

// Credential is a bearer token for the GitHub API.
type Credential string

// LogValue implements [log/slog.LogValuer].
func (c Credential) LogValue() slog.Value {
	return slog.StringValue("REDACTED")
}

// Provider produces a bearer credential for the next API call.
type Provider interface {
	Credential(ctx context.Context) (Credential, error)
}

// StaticToken returns a pre-configured token as-is.
type StaticToken struct {
	token Credential
}

var _ Provider = StaticToken{}

func NewStaticToken(token string) StaticToken {
	return StaticToken{token: Credential(token)}
}

func (s StaticToken) LogValue() slog.Value {
	return slog.GroupValue(slog.String("strategy", "static_token"))
}

func (s StaticToken) Credential(context.Context) (Credential, error) {
	if s.token == "" {
		return "", ErrNotConfigured
	}
	return s.token, nil
}

// Config holds GitHub credential material.
type Config struct {
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKey     []byte
	APIURL         string
	HTTPClient     *http.Client
}

// AppConfigured reports whether all App fields are set.
func (c Config) AppConfigured() bool {
	return c.AppID != 0 && c.InstallationID != 0 && len(c.PrivateKey) > 0
}

// AppPartiallyConfigured reports whether some but not all App fields are set.
func (c Config) AppPartiallyConfigured() bool {
	return !c.AppConfigured() && (c.AppID != 0 || c.InstallationID != 0 || len(c.PrivateKey) > 0)
}

// NewProvider selects a strategy from cfg. Complete App credentials win over
// a static token. It returns ErrNotConfigured when neither is usable.
func NewProvider(cfg Config) (Provider, error) {
	switch {
	case cfg.AppConfigured():
		return NewInstallation(cfg.AppID, cfg.InstallationID, cfg.PrivateKey,
			WithAPIURL(cfg.APIURL),
			WithHTTPClient(cfg.HTTPClient),
		)
	case cfg.Token != "":
		return NewStaticToken(cfg.Token), nil
	default:
		return nil, ErrNotConfigured
	}
}

// ParseAPIURL parses a REST endpoint and ensures it ends with a slash, as
// go-github requires of BaseURL.
func ParseAPIURL(raw string) (*url.URL, error) {
	if raw == "" {
		raw = DefaultAPIURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("invalid GitHub API URL scheme %q", u.Scheme)
	}
	return u, nil
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
