package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mscno/issuerelay/pkg/config"
	"github.com/mscno/issuerelay/pkg/githubapp"
	"github.com/mscno/issuerelay/pkg/issues"
	"github.com/mscno/issuerelay/pkg/logging"
	"github.com/mscno/issuerelay/pkg/session"
	"github.com/mscno/issuerelay/pkg/steam"
	"github.com/mscno/issuerelay/server"
	"github.com/mscno/issuerelay/server/middleware"
)

const shutdownTimeout = 15 * time.Second

type ServeCmd struct {
	config.Config `embed:""`
}

func (c *ServeCmd) Run(ctx *cliCtx) error {
	if err := c.Validate(); err != nil {
		return err
	}
	logger, closer, err := logging.New(c.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	srv, cleanup, err := c.build(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(runCtx, srv, logger)
}

// build wires the relay from the configuration. Missing secrets only
// produce warnings; the affected requests fail with 500.
func (c *ServeCmd) build(logger *slog.Logger) (*server.HTTPServer, func(), error) {
	httpClient := &http.Client{Timeout: c.UpstreamTimeout}

	ghCfg, err := c.GitHub(httpClient)
	if err != nil {
		return nil, nil, err
	}
	if ghCfg.AppPartiallyConfigured() {
		logger.Warn("incomplete GitHub App configuration ignored",
			"app_id", ghCfg.AppID != 0,
			"installation_id", ghCfg.InstallationID != 0,
			"private_key", len(ghCfg.PrivateKey) > 0,
		)
	}
	provider, err := githubapp.NewProvider(ghCfg)
	switch {
	case errors.Is(err, githubapp.ErrNotConfigured):
		logger.Warn("no GitHub credentials configured, issue submission is disabled")
		provider = nil
	case err != nil:
		logger.Error("GitHub App credentials unusable, issue submission is disabled", "error", err)
		provider = nil
	default:
		logger.Info("GitHub credentials configured", "provider", provider)
	}

	issueClient, err := issues.NewClient(c.GitHubAPIURL,
		issues.WithHTTPClient(httpClient),
		issues.WithTimeout(c.UpstreamTimeout),
	)
	if err != nil {
		return nil, nil, err
	}

	sessions := session.NewCodec(c.SessionSecret)
	if !sessions.Configured() {
		logger.Warn("SESSION_SECRET not set, logins and submissions will fail")
	}
	repos := c.Repos()
	if repos.Empty() {
		logger.Warn("ALLOWED_REPOS not set, every repo is rejected")
	}
	if c.GitHubOwner == "" {
		logger.Warn("GITHUB_OWNER not set, issue submission is disabled")
	}
	origins := c.Origins()

	relay := server.NewRelay(server.Options{
		Sessions: sessions,
		Steam: steam.NewVerifier(
			steam.WithEndpoint(c.SteamOpenIDURL),
			steam.WithProfileURL(c.SteamProfileURL),
			steam.WithHTTPClient(httpClient),
			steam.WithLogger(logger),
		),
		Credentials: provider,
		Issues:      issueClient,
		Owner:       c.GitHubOwner,
		Repos:       repos,
		Origins:     origins,
		PublicURL:   c.PublicURL,
		Timeout:     c.UpstreamTimeout,
		Logger:      logger,
	})

	var limiter *middleware.RateLimiter
	cleanup := func() {}
	if c.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(logger, middleware.ClientIPKeyFunc,
			middleware.PerMinute(c.RateLimitPerMinute), max(c.RateLimitBurst, 1))
		cleanup = limiter.Close
	}

	srv := server.NewHTTPServer(c.ListenAddr, logger)
	srv.Use(server.Middleware(logger, origins)...)
	relay.Register(srv, limiter)

	logger.Info("relay configured",
		"owner", c.GitHubOwner,
		"repos", repos.String(),
		"origins", origins.String(),
		"rate_limit_per_minute", c.RateLimitPerMinute,
	)
	return srv, cleanup, nil
}

// serve runs srv until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, srv *server.HTTPServer, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
