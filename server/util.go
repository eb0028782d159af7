package server

import (
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/mscno/issuerelay/pkg/config"
)

var repoFormat = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

var (
	errMissingReturnURL = errors.New("missing return_url")
	errInvalidReturnURL = errors.New("invalid return_url")
)

// validateRepoName ensures repo is a bare repository name, never a path
func validateRepoName(repo string) bool {
	return repoFormat.MatchString(repo) && repo != "." && repo != ".."
}

// parseReturnURL accepts absolute http(s) URLs. Unless origins is the
// wildcard, the URL origin must be listed.
func parseReturnURL(raw string, origins config.AllowList) (*url.URL, error) {
	if raw == "" {
		return nil, errMissingReturnURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errInvalidReturnURL
	}
	if !origins.Wildcard() && !origins.Allows(u.Scheme+"://"+u.Host) {
		return nil, errInvalidReturnURL
	}
	return u, nil
}

// outcomeParams are owned by the callback redirect. Values carried in on
// return_url are dropped so a previous attempt never leaks through.
var outcomeParams = []string{"steam_auth", "steam_id", "steam_name", "session_token"}

// withQuery returns u with the outcome parameters replaced by params.
// Other query parameters are kept.
func withQuery(u *url.URL, params url.Values) string {
	out := *u
	q := out.Query()
	for _, k := range outcomeParams {
		q.Del(k)
	}
	for k, vals := range params {
		q[k] = vals
	}
	out.RawQuery = q.Encode()
	return out.String()
}

// isCallbackURL reports whether raw points at callback, ignoring the query.
func isCallbackURL(raw, callback string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme+"://"+u.Host+u.Path == callback
}

// requestOrigin is the scheme and host the client used to reach the relay.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

func (rl *Relay) origin(r *http.Request) string {
	if rl.publicURL != "" {
		return strings.TrimSuffix(rl.publicURL, "/")
	}
	return requestOrigin(r)
}
