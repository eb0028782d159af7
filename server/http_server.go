package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-michi/michi"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	maxHeaderBytes    = 1 << 20
	readTimeout       = 30 * time.Second
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 120 * time.Second
)

// HTTPServer serves the relay routes over HTTP/1.1 and cleartext HTTP/2.
type HTTPServer struct {
	Server *http.Server
	Router *michi.Router

	logger      *slog.Logger
	middleware  []func(http.Handler) http.Handler
	routesAdded bool
}

// NewHTTPServer creates a new HTTPServer listening on addr
func NewHTTPServer(addr string, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &HTTPServer{
		Router: michi.NewRouter(),
		logger: logger,
		Server: &http.Server{
			Addr:              addr,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			MaxHeaderBytes:    maxHeaderBytes,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
	}
	s.rebuildHandlerChain()
	return s
}

// Use adds middleware to the server. The first middleware is the outermost.
func (s *HTTPServer) Use(mw ...func(http.Handler) http.Handler) {
	if s.routesAdded {
		panic("cannot add middleware after routes are registered")
	}
	s.middleware = append(s.middleware, mw...)

	// Rebuild the handler chain with the updated middleware
	s.rebuildHandlerChain()
}

// Handle registers handler for a method and path pattern such as "GET /health".
func (s *HTTPServer) Handle(pattern string, handler http.Handler) {
	s.routesAdded = true
	s.Router.Handle(pattern, handler)
}

// ServeHTTP implements the http.Handler interface
func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Server.Handler.ServeHTTP(w, r)
}

// ListenAndServe blocks until the server stops. A graceful shutdown is not an error.
func (s *HTTPServer) ListenAndServe() error {
	s.logger.Info("listening", "addr", s.Server.Addr)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests until ctx is done
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Debug("shutting down server")
	if err := s.Server.Shutdown(ctx); err != nil {
		s.logger.Error("error shutting down server", "error", err)
		return err
	}
	return nil
}

// rebuildHandlerChain rebuilds the HTTP handler chain with current middleware.
// h2c sits outside the chain so every HTTP/2 stream passes through it.
func (s *HTTPServer) rebuildHandlerChain() {
	s.Server.Handler = h2c.NewHandler(applyMiddleware(s.Router, s.middleware...), &http2.Server{})
}

func applyMiddleware(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	// Apply middleware in reverse order so the first middleware in the slice
	// is the outermost one (first to process the request)
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
