// Package steam implements the two legs of Steam OpenID 2.0 sign-in
// (checkid_setup and check_authentication) and the display-name lookup.
package steam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	ProviderName = "Steam"

	DefaultEndpoint   = "https://steamcommunity.com/openid/login"
	DefaultProfileURL = "https://steamcommunity.com/profiles/"

	openIDNamespace      = "http://specs.openid.net/auth/2.0"
	identifierSelect     = "http://specs.openid.net/auth/2.0/identifier_select"
	validMarker          = "is_valid:true"
	maxProviderBodyBytes = 64 << 10
	defaultTimeout       = 10 * time.Second
)

var (
	ErrCancelled        = errors.New("sign-in cancelled by user")
	ErrInvalidAssertion = errors.New("malformed OpenID assertion")
	ErrInvalidClaimedID = errors.New("claimed_id is not a Steam identity")
	ErrNotValid         = errors.New("provider rejected the assertion")
	ErrProvider         = errors.New("identity provider unreachable")
)

// Identity is a verified Steam sign-in.
type Identity struct {
	SteamID string
	Name    string
}

// Verifier talks to the Steam OpenID provider.
type Verifier struct {
	endpoint   string
	profileURL string
	client     *http.Client
	logger     *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithEndpoint overrides the OpenID provider endpoint.
func WithEndpoint(endpoint string) Option {
	return func(v *Verifier) {
		if endpoint != "" {
			v.endpoint = endpoint
		}
	}
}

// WithProfileURL overrides the profile base URL used for display names.
// The SteamID and "/?xml=1" are appended to it.
func WithProfileURL(u string) Option {
	return func(v *Verifier) {
		if u != "" {
			v.profileURL = u
		}
	}
}

// WithHTTPClient sets the client used for provider round trips.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) {
		if c != nil {
			v.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewVerifier returns a Verifier against the public Steam provider unless overridden.
func NewVerifier(options ...Option) *Verifier {
	v := &Verifier{
		endpoint:   DefaultEndpoint,
		profileURL: DefaultProfileURL,
		client:     &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Endpoint returns the provider endpoint.
func (v *Verifier) Endpoint() string {
	return v.endpoint
}

// AuthURL builds the checkid_setup URL the browser is redirected to.
// callbackURL receives the assertion; realm is the relay origin.
func (v *Verifier) AuthURL(callbackURL, realm string) (string, error) {
	u, err := url.Parse(v.endpoint)
	if err != nil {
		return "", fmt.Errorf("steam: invalid endpoint %q: %w", v.endpoint, err)
	}
	q := url.Values{}
	q.Set("openid.ns", openIDNamespace)
	q.Set("openid.mode", "checkid_setup")
	q.Set("openid.return_to", callbackURL)
	q.Set("openid.realm", realm)
	q.Set("openid.identity", identifierSelect)
	q.Set("openid.claimed_id", identifierSelect)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify validates the assertion in params with the provider and resolves
// the display name. A failed name lookup never fails verification.
func (v *Verifier) Verify(ctx context.Context, params url.Values) (Identity, error) {
	switch params.Get("openid.mode") {
	case "id_res":
	case "cancel":
		return Identity{}, ErrCancelled
	default:
		return Identity{}, fmt.Errorf("%w: unexpected mode %q", ErrInvalidAssertion, params.Get("openid.mode"))
	}
	if ep := params.Get("openid.op_endpoint"); ep != v.endpoint {
		return Identity{}, fmt.Errorf("%w: op_endpoint %q", ErrInvalidAssertion, ep)
	}
	steamID, ok := ParseClaimedID(params.Get("openid.claimed_id"))
	if !ok {
		return Identity{}, ErrInvalidClaimedID
	}

	if err := v.checkAuthentication(ctx, params); err != nil {
		return Identity{}, err
	}

	return Identity{SteamID: steamID, Name: v.DisplayName(ctx, steamID)}, nil
}

func (v *Verifier) checkAuthentication(ctx context.Context, params url.Values) error {
	form := url.Values{}
	for k, vals := range params {
		if strings.HasPrefix(k, "openid.") {
			form[k] = vals
		}
	}
	form.Set("openid.mode", "check_authentication")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", ErrProvider, err)
	}
	if !strings.Contains(string(body), validMarker) {
		v.logger.WarnContext(ctx, "steam rejected assertion", "status", resp.StatusCode)
		return ErrNotValid
	}
	return nil
}
