package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRateLimiter(t *testing.T) {
	tests := []struct {
		name         string
		ip           string
		expectStatus int
		numRequests  int
		sleep        time.Duration
		burst        int
		limit        rate.Limit
	}{
		{
			name:         "within burst",
			ip:           "192.168.1.1:4711",
			expectStatus: http.StatusOK,
			numRequests:  10,
			limit:        PerMinute(30),
			burst:        10,
		},
		{
			name:         "burst exhausted",
			ip:           "192.168.1.1:4711",
			expectStatus: http.StatusTooManyRequests,
			numRequests:  11,
			limit:        PerMinute(30),
			burst:        10,
		},
		{
			name:         "ok within limit as tokens refill",
			ip:           "192.168.1.1:4711",
			expectStatus: http.StatusOK,
			numRequests:  10,
			limit:        rate.Every(time.Millisecond),
			burst:        1,
			sleep:        2 * time.Millisecond,
		},
		{
			name:         "disabled",
			ip:           "192.168.1.1:4711",
			expectStatus: http.StatusOK,
			numRequests:  100,
			limit:        PerMinute(0),
			burst:        1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Create a new rate limiter
			rl := NewRateLimiter(slog.Default(), ClientIPKeyFunc, tc.limit, tc.burst)
			defer rl.Close()

			// Create a simple handler that returns 200 OK
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("test"))
			})

			// Wrap the test handler with the rate limiter middleware
			handler := rl.Limit(testHandler)

			// Set up request and response recorder
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = tc.ip

			var rec *httptest.ResponseRecorder
			for i := 0; i < tc.numRequests; i++ {
				rec = httptest.NewRecorder()
				handler.ServeHTTP(rec, req)
				time.Sleep(tc.sleep)
			}

			// Assert the final response status
			assert.Equal(t, tc.expectStatus, rec.Code)
		})
	}
}

func TestRateLimiter_KeysByIPIgnoringPort(t *testing.T) {
	rl := NewRateLimiter(slog.Default(), ClientIPKeyFunc, rate.Every(time.Hour), 1)
	defer rl.Close()
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/issues", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusCreated, send("10.0.0.1:1000").Code)
	limited := send("10.0.0.1:2000")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "application/json", limited.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(limited.Body.Bytes(), &body))
	assert.Equal(t, "Rate limit exceeded", body.Error)

	assert.Equal(t, http.StatusCreated, send("10.0.0.2:1000").Code)
}

func TestRateLimiter_Skipper(t *testing.T) {
	rl := NewRateLimiter(slog.Default(), ClientIPKeyFunc, rate.Every(time.Hour), 1,
		WithSkipper(func(r *http.Request) bool { return r.Method == http.MethodGet }))
	defer rl.Close()
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestPerMinute(t *testing.T) {
	assert.Equal(t, rate.Inf, PerMinute(0))
	assert.Equal(t, rate.Limit(1), PerMinute(60))
}

func TestClientIPKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:8080"
	assert.Equal(t, "::1", ClientIPKeyFunc(req))
	req.RemoteAddr = "weird"
	assert.Equal(t, "weird", ClientIPKeyFunc(req))
}
