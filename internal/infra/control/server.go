package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"live-translator/internal/domain"
	"live-translator/internal/infra/relay"
)

// Controller is the set of user triggers the server exposes.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	ToggleDirection(ctx context.Context) error
	Reset(ctx context.Context) error
	Snapshot() domain.Display
}

type Server struct {
	addr        string
	controller  Controller
	logger      *slog.Logger
	mux         *http.ServeMux
	rateLimiter *relay.RateLimiter
	authToken   string

	mu      sync.Mutex
	server  *http.Server
	running bool
}

// NewServer creates a new control server.
func NewServer(addr, authToken string, controller Controller, logger *slog.Logger) *Server {
	s := &Server{
		addr:        addr,
		controller:  controller,
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: relay.NewRateLimiter(60, time.Minute),
		authToken:   authToken,
	}
	s.mux.HandleFunc("POST /control/start", s.trigger("start", controller.Start))
	s.mux.HandleFunc("POST /control/stop", s.trigger("stop", controller.Stop))
	s.mux.HandleFunc("POST /control/toggle", s.trigger("toggle", controller.ToggleDirection))
	s.mux.HandleFunc("POST /control/reset", s.trigger("reset", controller.Reset))
	s.mux.HandleFunc("GET /state", s.authorize(s.handleState))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

// Mount adds an extra handler, such as the capture bridge, to the server.
func (s *Server) Mount(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.server = &http.Server{
		Handler:     s.mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	s.running = true
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("control server starting", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.setRunning(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving control: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.setRunning(false)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := srv.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}
	return nil
}

func (s *Server) setRunning(running bool) {
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()
}

func (s *Server) trigger(name string, action func(context.Context) error) http.HandlerFunc {
	return s.rateLimiter.Middleware(s.authorize(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		if err := action(ctx); err != nil {
			s.logger.Warn("control command failed", "command", name, "error", err)
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": err.Error(),
				"state": s.controller.Snapshot(),
			})
			return
		}

		s.logger.Info("control command", "command", name, "remote_addr", r.RemoteAddr)
		writeJSON(w, http.StatusOK, s.controller.Snapshot())
	}))
}

func (s *Server) authorize(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" {
			token := r.Header.Get("X-Auth-Token")
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token != s.authToken {
				s.logger.Warn("unauthorized control request", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	status := "ok"
	code := http.StatusOK
	if !running {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"running":   running,
		"listening": s.controller.Snapshot().Status == domain.StatusListening,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
