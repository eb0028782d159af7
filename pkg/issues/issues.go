// Package issues creates GitHub issues and translates GitHub failures into
// messages that are safe to show to the submitter.
package issues

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/go-github/v71/github"
	"github.com/mscno/issuerelay/pkg/githubapp"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout = 10 * time.Second
	// MaxDetailsLength bounds the raw GitHub error body echoed to clients.
	MaxDetailsLength = 500
	maxErrorBody     = 64 << 10
)

var (
	ErrUnreachable = errors.New("failed to reach GitHub")
	ErrTimeout     = errors.New("GitHub request timed out")
)

// Request is a single issue to file in Owner/Repo.
type Request struct {
	Owner  string
	Repo   string
	Title  string
	Body   string
	Labels []string
}

// Issue is the created issue.
type Issue struct {
	Number int
	URL    string
}

// UpstreamError is a non-2xx answer from the issue endpoint.
type UpstreamError struct {
	StatusCode  int
	Message     string
	Details     string
	RateLimited bool
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github: status %d: %s", e.StatusCode, e.Message)
}

// Client files issues through the GitHub REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the base client. Its transport is wrapped with the bearer credential.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithTimeout bounds each issue creation call.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// NewClient returns a Client for the REST endpoint apiURL (empty means api.github.com).
func NewClient(apiURL string, options ...Option) (*Client, error) {
	base, err := githubapp.ParseAPIURL(apiURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:    base,
		httpClient: http.DefaultClient,
		timeout:    defaultTimeout,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Create files req using cred. Failures are *UpstreamError, ErrTimeout or ErrUnreachable.
func (c *Client) Create(ctx context.Context, cred githubapp.Credential, req Request) (Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: string(cred)}))
	gh := github.NewClient(hc)
	gh.BaseURL = c.baseURL

	issueReq := &github.IssueRequest{
		Title: github.Ptr(req.Title),
		Body:  github.Ptr(req.Body),
	}
	if len(req.Labels) > 0 {
		issueReq.Labels = &req.Labels
	}

	issue, _, err := gh.Issues.Create(ctx, req.Owner, req.Repo, issueReq)
	if err != nil {
		return Issue{}, translate(err, req.Owner+"/"+req.Repo)
	}
	return Issue{Number: issue.GetNumber(), URL: issue.GetHTMLURL()}, nil
}

func translate(err error, fullName string) error {
	if resp, message, ok := githubapp.UpstreamResponse(err); ok {
		return &UpstreamError{
			StatusCode:  resp.StatusCode,
			Message:     StatusMessage(resp.StatusCode, fullName, githubapp.IsRateLimited(err)),
			Details:     details(resp, message),
			RateLimited: githubapp.IsRateLimited(err),
		}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrUnreachable, err)
}

// StatusMessage returns a human readable explanation of a GitHub status code.
func StatusMessage(status int, fullName string, rateLimited bool) string {
	if rateLimited {
		return "GitHub rate limit exceeded, retry later"
	}
	switch status {
	case http.StatusUnauthorized:
		return "GitHub token is invalid or expired"
	case http.StatusForbidden:
		return "GitHub token lacks permission to create issues in " + fullName
	case http.StatusNotFound:
		return "Repository " + fullName + " not found or not accessible"
	case http.StatusUnprocessableEntity:
		return "Invalid issue data"
	default:
		return fmt.Sprintf("GitHub API returned status %d", status)
	}
}

func details(resp *http.Response, fallback string) string {
	var raw string
	if resp.Body != nil {
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err == nil {
			raw = strings.TrimSpace(string(b))
		}
	}
	if raw == "" {
		raw = fallback
	}
	return Truncate(raw, MaxDetailsLength)
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// AttributedBody appends a footer naming the Steam user who filed the issue.
func AttributedBody(body, steamName, steamID, profileURL string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "_Submitted by **%s** via Steam ([%s](%s))_", markdownEscaper.Replace(steamName), steamID, profileURL)
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;",
)
