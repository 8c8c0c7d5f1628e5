// Package server exposes the dispatcher over HTTP for UI callers.
//
// Every response is a JSON envelope:
//
//	{"status":"ok","data":<value>}
//	{"status":"error","error":{"code":"UNKNOWN_CALL","message":"..."}}
//
// Partial calls travel as their encoded call string in "data"; clients
// send that string back as "left" to bind the next argument.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/moon/internal/value"
)

// DefaultAddr is used when no address is configured.
const DefaultAddr = "127.0.0.1:8787"

// Engine is the dispatcher surface the server drives. *engine.Engine
// implements it.
type Engine interface {
	Match(ctx context.Context, left string, right value.Value) (value.Value, error)
	Execute(ctx context.Context, expr value.Value) (value.Value, error)
	Insert(ctx context.Context, collection, id string, v value.Value) (string, error)
	Delete(ctx context.Context, collection, id string) (string, error)
	Remove(ctx context.Context, collection string) (string, error)
	Watch(ctx context.Context, key string) (value.Value, error)
}

// Server serves the HTTP API.
type Server struct {
	httpServer *http.Server
	engine     Engine
	limiter    *clientLimiter
	metrics    http.Handler
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit sets the per-client token bucket. rps <= 0 disables
// limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.limiter = newClientLimiter(rps, burst)
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a server for e listening on addr.
func New(addr string, e Engine, opts ...Option) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		engine: e,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /match", s.handleMatch)
	mux.HandleFunc("POST /exec", s.handleExec)
	mux.HandleFunc("GET /watch/{key}", s.handleWatch)
	mux.HandleFunc("PUT /collections/{collection}/{id}", s.handleInsert)
	mux.HandleFunc("DELETE /collections/{collection}/{id}", s.handleDelete)
	mux.HandleFunc("DELETE /collections/{collection}", s.handleRemove)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.withRequestID(s.withRateLimit(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.httpServer.Addr)
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("server stopped")
		return <-errCh
	case err := <-errCh:
		return err
	}
}

const requestIDHeader = "X-Request-Id"

type requestIDKey struct{}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			u, err := uuid.NewV7()
			if err != nil {
				u = uuid.New()
			}
			id = u.String()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)

		start := s.now()
		next.ServeHTTP(w, r.WithContext(ctx))
		s.logger.Debug("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", s.now().Sub(start),
		)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientKey(r), s.now()) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestID returns the request id stored by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
