package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recovery turns a panic into a 500 JSON error carrying the panic message
// and type. The stack trace is logged, never sent to the client.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				msg := fmt.Sprint(rec)
				typ := fmt.Sprintf("%T", rec)
				if err, ok := rec.(error); ok {
					msg = err.Error()
				}
				logger.ErrorContext(r.Context(), "panic serving request",
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", RequestID(r.Context()),
					"error", msg,
					"type", typ,
					"stack", string(debug.Stack()),
				)
				WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
					Error:   "Internal server error",
					Message: msg,
					Type:    typ,
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
