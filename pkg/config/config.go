// Package config holds the relay settings. Values come from flags or the
// environment through kong struct tags.
package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mscno/issuerelay/pkg/githubapp"
)

// Config is embedded into the serve command.
type Config struct {
	ListenAddr string `name:"listen" env:"LISTEN_ADDR" default:":8787" help:"Address to listen on."`
	PublicURL  string `name:"public-url" env:"PUBLIC_URL" help:"Public origin of the relay, used for the OpenID callback. Derived from the request when empty."`

	GitHubToken             string `name:"github-token" env:"GITHUB_TOKEN" help:"Static GitHub token."`
	GitHubAppID             int64  `name:"github-app-id" env:"GITHUB_APP_ID" help:"GitHub App id."`
	GitHubAppPrivateKey     string `name:"github-app-private-key" env:"GITHUB_APP_PRIVATE_KEY" help:"GitHub App private key (PEM)."`
	GitHubAppPrivateKeyFile string `name:"github-app-private-key-file" env:"GITHUB_APP_PRIVATE_KEY_FILE" help:"File holding the GitHub App private key (PEM)."`
	GitHubInstallationID    int64  `name:"github-app-installation-id" env:"GITHUB_APP_INSTALLATION_ID" help:"GitHub App installation id."`
	GitHubOwner             string `name:"github-owner" env:"GITHUB_OWNER" help:"Account or organization owning the target repositories."`
	GitHubAPIURL            string `name:"github-api-url" env:"GITHUB_API_URL" default:"https://api.github.com/" help:"GitHub REST endpoint."`

	AllowedRepos   string `name:"allowed-repos" env:"ALLOWED_REPOS" help:"Comma separated repository names issues may be filed against, or *."`
	AllowedOrigins string `name:"allowed-origins" env:"ALLOWED_ORIGINS" default:"*" help:"Comma separated CORS origins, or *."`
	SessionSecret  string `name:"session-secret" env:"SESSION_SECRET" help:"Secret used to sign session tokens."`

	SteamOpenIDURL  string `name:"steam-openid-url" env:"STEAM_OPENID_URL" default:"https://steamcommunity.com/openid/login" help:"Steam OpenID endpoint."`
	SteamProfileURL string `name:"steam-profile-url" env:"STEAM_PROFILE_URL" default:"https://steamcommunity.com/profiles/" help:"Steam community profile base URL."`

	UpstreamTimeout    time.Duration `name:"upstream-timeout" env:"UPSTREAM_TIMEOUT" default:"10s" help:"Timeout for each call to Steam or GitHub."`
	RateLimitPerMinute int           `name:"rate-limit" env:"RATE_LIMIT_PER_MINUTE" default:"30" help:"Issue submissions per minute per client IP (0 disables)."`
	RateLimitBurst     int           `name:"rate-limit-burst" env:"RATE_LIMIT_BURST" default:"10" help:"Burst size for issue submissions."`

	Log Log `embed:"" prefix:"log-"`
}

// Log configures the logger.
type Log struct {
	Level      string `name:"level" env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error" help:"Log level."`
	Format     string `name:"format" env:"LOG_FORMAT" default:"text" enum:"text,json" help:"Log format."`
	File       string `name:"file" env:"LOG_FILE" help:"Also write logs to this file, rotated."`
	MaxSizeMB  int    `name:"max-size-mb" env:"LOG_MAX_SIZE_MB" default:"20" help:"Rotate the log file after this many megabytes."`
	MaxBackups int    `name:"max-backups" env:"LOG_MAX_BACKUPS" default:"5" help:"Rotated log files to keep."`
	MaxAgeDays int    `name:"max-age-days" env:"LOG_MAX_AGE_DAYS" default:"14" help:"Days to keep rotated log files."`
}

// Repos returns the repository allow-list.
func (c Config) Repos() AllowList {
	return ParseAllowList(c.AllowedRepos)
}

// Origins returns the CORS origin allow-list.
func (c Config) Origins() AllowList {
	return ParseAllowList(c.AllowedOrigins)
}

// PrivateKey returns the App private key, read from file when configured.
// Literal "\n" sequences are turned into newlines so the PEM can live in a
// single line environment variable.
func (c Config) PrivateKey() ([]byte, error) {
	if c.GitHubAppPrivateKeyFile != "" {
		b, err := os.ReadFile(c.GitHubAppPrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading GitHub App private key: %w", err)
		}
		return b, nil
	}
	if c.GitHubAppPrivateKey == "" {
		return nil, nil
	}
	return []byte(strings.ReplaceAll(c.GitHubAppPrivateKey, `\n`, "\n")), nil
}

// GitHub returns the credential material for githubapp.NewProvider.
func (c Config) GitHub(httpClient *http.Client) (githubapp.Config, error) {
	key, err := c.PrivateKey()
	if err != nil {
		return githubapp.Config{}, err
	}
	return githubapp.Config{
		Token:          c.GitHubToken,
		AppID:          c.GitHubAppID,
		InstallationID: c.GitHubInstallationID,
		PrivateKey:     key,
		APIURL:         c.GitHubAPIURL,
		HTTPClient:     httpClient,
	}, nil
}

// Validate rejects values that can never work. Missing secrets are not
// errors here; the relay reports them per request.
func (c Config) Validate() error {
	if c.UpstreamTimeout < 0 {
		return fmt.Errorf("upstream timeout must not be negative")
	}
	if c.RateLimitPerMinute < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if _, err := githubapp.ParseAPIURL(c.GitHubAPIURL); err != nil {
		return err
	}
	if c.PublicURL != "" && !strings.HasPrefix(c.PublicURL, "http://") && !strings.HasPrefix(c.PublicURL, "https://") {
		return fmt.Errorf("public url %q must be http or https", c.PublicURL)
	}
	return nil
}
