package githubapp

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v71/github"
)

const (
	// GitHub rejects assertions issued in the future; backdate for clock skew.
	jwtBackdate = 60 * time.Second
	jwtLifetime = 600 * time.Second
)

// ExchangeError is a non-2xx answer from the installation token endpoint.
type ExchangeError struct {
	StatusCode int
	Message    string
}

func (e *ExchangeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("installation token exchange failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("installation token exchange failed with status %d: %s", e.StatusCode, e.Message)
}

// Installation exchanges a signed App JWT for an installation access token.
// Every call performs a fresh exchange; nothing is cached between calls.
type Installation struct {
	appID          int64
	installationID int64
	key            *rsa.PrivateKey
	baseURL        *url.URL
	client         *http.Client
	now            func() time.Time
}

var _ Provider = (*Installation)(nil)

// InstallationOption configures an Installation.
type InstallationOption func(*Installation) error

// WithAPIURL sets the REST endpoint. Empty means DefaultAPIURL.
func WithAPIURL(raw string) InstallationOption {
	return func(i *Installation) error {
		u, err := ParseAPIURL(raw)
		if err != nil {
			return err
		}
		i.baseURL = u
		return nil
	}
}

// WithHTTPClient sets the client used for the exchange.
func WithHTTPClient(c *http.Client) InstallationOption {
	return func(i *Installation) error {
		if c != nil {
			i.client = c
		}
		return nil
	}
}

func withClock(now func() time.Time) InstallationOption {
	return func(i *Installation) error {
		i.now = now
		return nil
	}
}

// NewInstallation parses the PEM encoded RSA private key of the App.
func NewInstallation(appID, installationID int64, privateKeyPEM []byte, options ...InstallationOption) (*Installation, error) {
	var err error
	if appID <= 0 {
		err = errors.Join(err, errors.New("app id must be positive"))
	}
	if installationID <= 0 {
		err = errors.Join(err, errors.New("installation id must be positive"))
	}
	key, keyErr := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if keyErr != nil {
		err = errors.Join(err, fmt.Errorf("private key: %w", keyErr))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAppCredentials, err)
	}

	base, _ := ParseAPIURL(DefaultAPIURL)
	i := &Installation{
		appID:          appID,
		installationID: installationID,
		key:            key,
		baseURL:        base,
		client:         defaultClient(),
		now:            time.Now,
	}
	for _, opt := range options {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// LogValue implements [log/slog.LogValuer].
func (i *Installation) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("app_id", i.appID),
		slog.Int64("installation_id", i.installationID),
		slog.String("server", i.baseURL.String()),
	)
}

// JWT returns an RS256 assertion authenticating as the App.
func (i *Installation) JWT() (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(i.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-jwtBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtLifetime)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("%w: signing JWT: %w", ErrInvalidAppCredentials, err)
	}
	return signed, nil
}

// Credential performs the JWT to installation token exchange.
func (i *Installation) Credential(ctx context.Context) (Credential, error) {
	assertion, err := i.JWT()
	if err != nil {
		return "", err
	}

	client := github.NewClient(i.client).WithAuthToken(assertion)
	client.BaseURL = i.baseURL

	tok, _, err := client.Apps.CreateInstallationToken(ctx, i.installationID, nil)
	if err != nil {
		if resp, message, ok := UpstreamResponse(err); ok {
			return "", &ExchangeError{StatusCode: resp.StatusCode, Message: message}
		}
		return "", fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if tok.GetToken() == "" {
		return "", &ExchangeError{StatusCode: http.StatusOK, Message: "empty token in response"}
	}
	return Credential(tok.GetToken()), nil
}
