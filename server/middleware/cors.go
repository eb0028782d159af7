package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mscno/issuerelay/pkg/config"
	"github.com/rs/cors"
)

type corsLogger struct {
	logger *slog.Logger
}

func (c *corsLogger) Printf(format string, args ...interface{}) {
	c.logger.Debug(fmt.Sprintf("CORS: %s", fmt.Sprintf(format, args...)))
}

// WithCORS sets CORS headers for origins in the allow-list. Requests from
// other origins are still served, just without Access-Control-Allow-Origin.
// Preflights are answered with 204.
func WithCORS(logger *slog.Logger, origins config.AllowList) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		middleware := cors.New(cors.Options{
			AllowedOrigins:       origins.Items(),
			AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:       []string{"Content-Type", "Authorization"},
			ExposedHeaders:       []string{RequestIDHeader},
			MaxAge:               86400,
			OptionsSuccessStatus: http.StatusNoContent,
			Logger:               &corsLogger{logger: logger},
		})
		return middleware.Handler(h)
	}
}

// ShortCircuitOptions answers every OPTIONS request with 204 before any
// handler runs. It belongs after WithCORS so the CORS headers are set.
func ShortCircuitOptions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
