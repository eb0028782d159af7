package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mscno/issuerelay/pkg/config"
	"github.com/mscno/issuerelay/pkg/githubapp"
	"github.com/mscno/issuerelay/pkg/issues"
	"github.com/mscno/issuerelay/pkg/session"
	"github.com/mscno/issuerelay/pkg/steam"
	"github.com/mscno/issuerelay/server/middleware"
)

const (
	defaultUpstreamTimeout = 10 * time.Second
	maxIssueRequestBytes   = 256 << 10
)

// Options are the dependencies of a Relay. Credentials may be nil, the
// relay then answers issue submissions with 500.
type Options struct {
	Sessions    *session.Codec
	Steam       *steam.Verifier
	Credentials githubapp.Provider
	Issues      *issues.Client
	Owner       string
	Repos       config.AllowList
	Origins     config.AllowList
	// PublicURL is the relay origin used to build the OpenID callback.
	// Derived from the request when empty.
	PublicURL string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Relay authenticates Steam users and files GitHub issues on their behalf.
// It keeps no state between requests.
type Relay struct {
	sessions    *session.Codec
	steam       *steam.Verifier
	credentials githubapp.Provider
	issues      *issues.Client
	owner       string
	repos       config.AllowList
	origins     config.AllowList
	publicURL   string
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewRelay(opts Options) *Relay {
	rl := &Relay{
		sessions:    opts.Sessions,
		steam:       opts.Steam,
		credentials: opts.Credentials,
		issues:      opts.Issues,
		owner:       opts.Owner,
		repos:       opts.Repos,
		origins:     opts.Origins,
		publicURL:   opts.PublicURL,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
		now:         time.Now,
	}
	if rl.steam == nil {
		rl.steam = steam.NewVerifier()
	}
	if rl.timeout <= 0 {
		rl.timeout = defaultUpstreamTimeout
	}
	if rl.logger == nil {
		rl.logger = slog.Default()
	}
	return rl
}

// Register adds the relay routes to s. limiter guards issue submission
// and may be nil.
func (rl *Relay) Register(s *HTTPServer, limiter *middleware.RateLimiter) {
	var create http.Handler = http.HandlerFunc(rl.CreateIssue)
	if limiter != nil {
		create = limiter.Limit(create)
	}
	s.Handle("GET /auth/steam", http.HandlerFunc(rl.SteamLogin))
	s.Handle("GET /auth/steam/callback", http.HandlerFunc(rl.SteamCallback))
	s.Handle("POST /api/issues", create)
	s.Handle("GET /health", http.HandlerFunc(rl.Health))
	s.Handle("/", http.HandlerFunc(rl.NotFound))
}

type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// Health handles GET /health
func (rl *Relay) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Time:   rl.now().UTC().Format(isoMillis),
	})
}

// NotFound answers every unrouted method and path.
func (rl *Relay) NotFound(w http.ResponseWriter, r *http.Request) {
	middleware.WriteError(w, http.StatusNotFound, "Not found")
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Middleware is the relay chain, outermost first.
func Middleware(logger *slog.Logger, origins config.AllowList) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.WithLogger(logger),
		middleware.Recovery(logger),
		middleware.SecurityHeaders,
		middleware.WithCORS(logger, origins),
		middleware.ShortCircuitOptions,
	}
}
