// Package server exposes the assessment engine over HTTP: on-demand
// assessment, diff ingest, and live verdict streams over SSE and websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dshills/nfdiff/internal/logging"
	"github.com/dshills/nfdiff/internal/service"
	"github.com/dshills/nfdiff/internal/stream"
)

const (
	defaultLatestCount = 20
	defaultMaxBody     = 1 << 20
	subscriberBuffer   = 64
)

// Ingest stores raw envelopes for the consumption loop.
type Ingest interface {
	Push(ctx context.Context, payload []byte) error
	Latest(ctx context.Context, n int64) ([][]byte, error)
}

// Pinger is implemented by an Ingest that can report its own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP handlers. Ingest may be nil, in which case the ingest
// routes answer 503.
type Server struct {
	loop    *service.Loop
	hub     *stream.Hub
	ingest  Ingest
	logger  *zap.Logger
	maxBody int64
}

// Option configures a Server.
type Option func(*Server)

// WithIngest enables POST /diff and GET /diffs/latest.
func WithIngest(in Ingest) Option { return func(s *Server) { s.ingest = in } }

// WithLogger sets the request logger.
func WithLogger(lg *zap.Logger) Option { return func(s *Server) { s.logger = lg } }

// WithMaxBody caps request bodies.
func WithMaxBody(n int64) Option { return func(s *Server) { s.maxBody = n } }

// New returns a Server. hub may be nil when streaming is not wanted.
func New(loop *service.Loop, hub *stream.Hub, opts ...Option) *Server {
	s := &Server{loop: loop, hub: hub, maxBody: defaultMaxBody}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger)
	return s
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.healthz)
	r.Post("/assess", s.assess)
	r.Post("/diff", s.pushDiff)
	r.Get("/diffs/latest", s.latestDiffs)
	r.Get("/analysis/latest", s.streamSSE)
	r.Get("/analysis/ws", s.streamWS)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.hub != nil {
		s.hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"stats":  s.loop.Stats(),
	}
	if s.hub != nil {
		resp["subscribers"] = s.hub.Subscribers()
	}
	if p, ok := s.ingest.(Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			resp["status"] = "degraded"
			resp["redis"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["redis"] = "ok"
	}
	writeJSON(w, http.StatusOK, resp)
}

// assess runs one envelope through the loop and answers with the verdict
// record. Malformed envelopes are assessed as empty documents, not rejected.
func (s *Server) assess(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.loop.Handle(r.Context(), body))
}

func (s *Server) pushDiff(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		writeError(w, http.StatusServiceUnavailable, "ingest unavailable")
		return
	}
	body, err := s.readBody(w, r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "body is not valid JSON")
		return
	}
	if err := s.ingest.Push(r.Context(), body); err != nil {
		s.logger.Error("ingest push failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "ingest failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) latestDiffs(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		writeError(w, http.StatusServiceUnavailable, "ingest unavailable")
		return
	}
	count := int64(defaultLatestCount)
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "count must be a non-negative integer")
			return
		}
		count = n
	}
	items, err := s.ingest.Latest(r.Context(), count)
	if err != nil {
		s.logger.Error("ingest latest failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "ingest failed")
		return
	}
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		if json.Valid(it) {
			out = append(out, json.RawMessage(it))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
