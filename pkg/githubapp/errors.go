package githubapp

import (
	"errors"
	"net/http"

	"github.com/google/go-github/v71/github"
)

// UpstreamResponse extracts the HTTP response from a go-github error, if
// GitHub answered at all. The response body stays readable.
func UpstreamResponse(err error) (*http.Response, string, bool) {
	var (
		errResp  *github.ErrorResponse
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
	)
	switch {
	case errors.As(err, &rateErr) && rateErr.Response != nil:
		return rateErr.Response, rateErr.Message, true
	case errors.As(err, &abuseErr) && abuseErr.Response != nil:
		return abuseErr.Response, abuseErr.Message, true
	case errors.As(err, &errResp) && errResp.Response != nil:
		return errResp.Response, errResp.Message, true
	}
	return nil, "", false
}

// IsRateLimited reports whether err is a GitHub primary or secondary rate limit.
func IsRateLimited(err error) bool {
	var (
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
	)
	return errors.As(err, &rateErr) || errors.As(err, &abuseErr)
}
