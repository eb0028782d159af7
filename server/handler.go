package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/mscno/issuerelay/pkg/githubapp"
	"github.com/mscno/issuerelay/pkg/issues"
	"github.com/mscno/issuerelay/pkg/session"
	"github.com/mscno/issuerelay/pkg/steam"
	"github.com/mscno/issuerelay/server/middleware"
)

const (
	callbackPath = "/auth/steam/callback"
	returnURLKey = "return_url"
)

// SteamLogin handles GET /auth/steam
func (rl *Relay) SteamLogin(w http.ResponseWriter, r *http.Request) {
	returnURL, err := parseReturnURL(r.URL.Query().Get(returnURLKey), rl.origins)
	if err != nil {
		rl.writeReturnURLError(w, err)
		return
	}

	origin := rl.origin(r)
	callback := origin + callbackPath + "?" + url.Values{returnURLKey: {returnURL.String()}}.Encode()
	target, err := rl.steam.AuthURL(callback, origin)
	if err != nil {
		rl.logger.ErrorContext(r.Context(), "failed to build steam login url", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "Server misconfigured")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// SteamCallback handles GET /auth/steam/callback. Once the return URL is
// known every outcome is a redirect back to it.
func (rl *Relay) SteamCallback(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	returnURL, err := parseReturnURL(params.Get(returnURLKey), rl.origins)
	if err != nil {
		rl.writeReturnURLError(w, err)
		return
	}
	fail := func() {
		http.Redirect(w, r, withQuery(returnURL, url.Values{"steam_auth": {"error"}}), http.StatusFound)
	}

	if returnTo := params.Get("openid.return_to"); !isCallbackURL(returnTo, rl.origin(r)+callbackPath) {
		rl.logger.WarnContext(r.Context(), "steam assertion for foreign return_to", "return_to", returnTo)
		fail()
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), rl.timeout)
	defer cancel()
	identity, err := rl.steam.Verify(ctx, params)
	if err != nil {
		level := rl.logger.WarnContext
		if errors.Is(err, steam.ErrCancelled) {
			level = rl.logger.InfoContext
		}
		level(r.Context(), "steam login failed", "error", err)
		fail()
		return
	}

	token, err := rl.sessions.Mint(identity.SteamID)
	if err != nil {
		rl.logger.ErrorContext(r.Context(), "cannot mint session token", "steam_id", identity.SteamID, "error", err)
		fail()
		return
	}

	rl.logger.InfoContext(r.Context(), "steam login", "steam_id", identity.SteamID, "session_token", token)
	http.Redirect(w, r, withQuery(returnURL, url.Values{
		"steam_auth":    {"success"},
		"steam_id":      {identity.SteamID},
		"steam_name":    {identity.Name},
		"session_token": {string(token)},
	}), http.StatusFound)
}

func (rl *Relay) writeReturnURLError(w http.ResponseWriter, err error) {
	if errors.Is(err, errMissingReturnURL) {
		middleware.WriteError(w, http.StatusBadRequest, "Missing return_url")
		return
	}
	middleware.WriteError(w, http.StatusBadRequest, "Invalid return_url")
}

type createIssueRequest struct {
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	Labels       []string `json:"labels,omitempty"`
	Repo         string   `json:"repo"`
	SessionToken string   `json:"session_token"`
	SteamID      string   `json:"steam_id"`
	SteamName    string   `json:"steam_name"`
}

type createIssueResponse struct {
	Success     bool   `json:"success"`
	IssueNumber int    `json:"issue_number"`
	IssueURL    string `json:"issue_url"`
}

// CreateIssue handles POST /api/issues
func (rl *Relay) CreateIssue(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIssueRequestBytes)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Cheap checks first, then the session, then anything touching GitHub.
	switch {
	case strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Body) == "":
		middleware.WriteError(w, http.StatusBadRequest, "Missing title or body")
		return
	case req.Repo == "":
		middleware.WriteError(w, http.StatusBadRequest, "Missing repo")
		return
	case req.SessionToken == "" || req.SteamID == "":
		middleware.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if err := rl.sessions.Verify(req.SteamID, req.SessionToken); err != nil {
		if errors.Is(err, session.ErrSecretNotConfigured) {
			rl.logger.ErrorContext(r.Context(), "session secret not configured")
			middleware.WriteJSON(w, http.StatusInternalServerError, middleware.ErrorResponse{
				Error:   "Server misconfigured",
				Message: "Session secret not configured",
			})
			return
		}
		rl.logger.WarnContext(r.Context(), "invalid session", "steam_id", req.SteamID)
		middleware.WriteError(w, http.StatusForbidden, "Invalid session")
		return
	}

	if !validateRepoName(req.Repo) || !rl.repos.Allows(req.Repo) {
		rl.logger.WarnContext(r.Context(), "repo not allowed", "repo", req.Repo, "steam_id", req.SteamID)
		middleware.WriteError(w, http.StatusForbidden, "Repo not allowed")
		return
	}

	if rl.credentials == nil || rl.owner == "" || rl.issues == nil {
		rl.logger.ErrorContext(r.Context(), "github not configured",
			"credentials", rl.credentials != nil, "owner", rl.owner != "")
		middleware.WriteJSON(w, http.StatusInternalServerError, middleware.ErrorResponse{
			Error:   "Server misconfigured",
			Message: "GitHub credentials not configured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), rl.timeout)
	defer cancel()
	cred, err := rl.credentials.Credential(ctx)
	if err != nil {
		rl.writeCredentialError(w, r, err)
		return
	}

	name := strings.TrimSpace(req.SteamName)
	if name == "" {
		name = steam.DefaultName(req.SteamID)
	}
	issue, err := rl.issues.Create(r.Context(), cred, issues.Request{
		Owner:  rl.owner,
		Repo:   req.Repo,
		Title:  req.Title,
		Body:   issues.AttributedBody(req.Body, name, req.SteamID, steam.ProfileLink(req.SteamID)),
		Labels: req.Labels,
	})
	if err != nil {
		rl.writeIssueError(w, r, err)
		return
	}

	rl.logger.InfoContext(r.Context(), "issue created",
		"repo", rl.owner+"/"+req.Repo,
		"issue_number", issue.Number,
		"steam_id", req.SteamID,
	)
	middleware.WriteJSON(w, http.StatusCreated, createIssueResponse{
		Success:     true,
		IssueNumber: issue.Number,
		IssueURL:    issue.URL,
	})
}

func (rl *Relay) writeCredentialError(w http.ResponseWriter, r *http.Request, err error) {
	rl.logger.ErrorContext(r.Context(), "failed to obtain github credential", "error", err)

	var exchangeErr *githubapp.ExchangeError
	switch {
	case errors.As(err, &exchangeErr):
		middleware.WriteJSON(w, http.StatusBadGateway, middleware.ErrorResponse{
			Error:   "GitHub authentication failed",
			Message: exchangeErr.Message,
			Status:  exchangeErr.StatusCode,
		})
	case errors.Is(err, githubapp.ErrInvalidAppCredentials), errors.Is(err, githubapp.ErrNotConfigured):
		middleware.WriteJSON(w, http.StatusInternalServerError, middleware.ErrorResponse{
			Error:   "Server misconfigured",
			Message: "GitHub App credentials are invalid",
		})
	case errors.Is(err, context.DeadlineExceeded):
		middleware.WriteError(w, http.StatusGatewayTimeout, "GitHub request timed out")
	default:
		middleware.WriteJSON(w, http.StatusBadGateway, middleware.ErrorResponse{
			Error:   "Failed to reach GitHub",
			Message: "GitHub is unreachable, retry later",
		})
	}
}

func (rl *Relay) writeIssueError(w http.ResponseWriter, r *http.Request, err error) {
	var upstream *issues.UpstreamError
	switch {
	case errors.As(err, &upstream):
		rl.logger.ErrorContext(r.Context(), "github rejected issue",
			"status", upstream.StatusCode,
			"rate_limited", upstream.RateLimited,
			"message", upstream.Message,
		)
		middleware.WriteJSON(w, http.StatusBadGateway, middleware.ErrorResponse{
			Error:   "GitHub API error",
			Message: upstream.Message,
			Details: upstream.Details,
			Status:  upstream.StatusCode,
		})
	case errors.Is(err, issues.ErrTimeout):
		rl.logger.ErrorContext(r.Context(), "github issue request timed out", "error", err)
		middleware.WriteError(w, http.StatusGatewayTimeout, "GitHub request timed out")
	default:
		rl.logger.ErrorContext(r.Context(), "failed to reach github", "error", err)
		middleware.WriteJSON(w, http.StatusBadGateway, middleware.ErrorResponse{
			Error:   "Failed to reach GitHub",
			Message: "GitHub is unreachable, retry later",
		})
	}
}
