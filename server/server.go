// Package server exposes the suggestion router over HTTP with JSON bodies.
package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/router"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "server")

// Routes
const (
	PathSuggest      = "/api/suggest"
	PathHealth       = "/api/health"
	PathHealthCheck  = "/api/health/check"
	PathStatus       = "/api/status"
	PathPerformance  = "/api/performance"
	PathRollback     = "/api/rollback"
	PathTools        = "/api/tools"
	PathToolState    = "/api/tools/state"
	PathCacheClear   = "/api/cache/clear"
	PathVerification = "/api/verification"
)

// DefaultShutdownTimeout is the time given to in-flight requests on shutdown
const DefaultShutdownTimeout = 5 * time.Second

// maxBodySize limits request bodies
const maxBodySize = 1 << 20

// Server is the HTTP API server
type Server struct {
	router       *router.Router
	addr         string
	cors         bool
	readTimeout  time.Duration
	writeTimeout time.Duration

	lock       sync.Mutex
	httpServer *http.Server
	listenAddr string
}

// Option configures the Server
type Option func(*Server)

// WithAddr sets the address to listen on
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithCORS enables permissive CORS headers
func WithCORS(enabled bool) Option {
	return func(s *Server) {
		s.cors = enabled
	}
}

// WithTimeouts sets the read and write timeouts
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
	}
}

// New creates a new API server
func New(r *router.Router, opts ...Option) *Server {
	s := &Server{
		router:       r,
		addr:         ":8080",
		readTimeout:  10 * time.Second,
		writeTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler with all routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PathSuggest, allow(http.MethodPost, s.handleSuggest))
	mux.HandleFunc(PathHealth, allow(http.MethodGet, s.handleHealth))
	mux.HandleFunc(PathHealthCheck, allow(http.MethodPost, s.handleHealthCheck))
	mux.HandleFunc(PathStatus, allow(http.MethodGet, s.handleStatus))
	mux.HandleFunc(PathPerformance, allow(http.MethodGet, s.handlePerformance))
	mux.HandleFunc(PathRollback, allow(http.MethodPost, s.handleRollback))
	mux.HandleFunc(PathTools, allow(http.MethodGet, s.handleTools))
	mux.HandleFunc(PathToolState, allow(http.MethodPost, s.handleToolState))
	mux.HandleFunc(PathCacheClear, allow(http.MethodPost, s.handleCacheClear))
	mux.HandleFunc(PathVerification, allow(http.MethodGet, s.handleVerification))

	var h http.Handler = mux
	if s.cors {
		h = corsMiddleware(h)
	}
	return loggingMiddleware(h)
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.addr)
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  60 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	s.lock.Lock()
	s.httpServer = srv
	s.listenAddr = ln.Addr().String()
	s.lock.Unlock()

	logger.KV(xlog.INFO, "status", "starting", "addr", s.listenAddr, "cors", s.cors)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.KV(xlog.INFO, "status", "shutting_down", "addr", s.listenAddr)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "failed to shutdown server")
		}
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return errors.Wrap(err, "failed to serve")
	}
}

// Addr returns the listening address once started,
// or the configured address.
func (s *Server) Addr() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listenAddr != "" {
		return s.listenAddr
	}
	return s.addr
}

// allow rejects requests with methods other than the method
func allow(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.ContextKV(r.Context(), xlog.DEBUG,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
