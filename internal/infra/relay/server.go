package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"live-translator/internal/application"
	"live-translator/internal/domain"
)

// Server exposes a TextTranslator backend as POST /api/translate.
type Server struct {
	addr        string
	backend     application.TextTranslator
	logger      *slog.Logger
	mux         *http.ServeMux
	rateLimiter *RateLimiter

	mu      sync.Mutex
	server  *http.Server
	running bool
}

func NewServer(addr string, backend application.TextTranslator, ratePerMinute int, logger *slog.Logger) *Server {
	s := &Server{
		addr:        addr,
		backend:     backend,
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(ratePerMinute, time.Minute),
	}
	s.mux.HandleFunc("POST /api/translate", cors(s.rateLimiter.Middleware(s.handleTranslate)))
	s.mux.HandleFunc("OPTIONS /api/translate", cors(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.server = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.running = true
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("relay server starting", "addr", ln.Addr().String(), "backend", s.backend.Name())

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
		return fmt.Errorf("serving relay: %w", err)
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

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)
	logger := s.logger.With("request_id", requestID)

	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, translateResponse{Error: "failed to read body"})
		return
	}

	var req translateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, translateResponse{Error: "invalid request body"})
		return
	}

	text := strings.TrimSpace(req.Text)
	source, target := domain.Language(req.Source), domain.Language(req.Target)
	if text == "" {
		writeJSON(w, http.StatusBadRequest, translateResponse{Error: "text is required"})
		return
	}
	if !domain.ValidLanguage(source) || !domain.ValidLanguage(target) || source == target {
		writeJSON(w, http.StatusBadRequest, translateResponse{Error: "unsupported language pair"})
		return
	}

	start := time.Now()
	translation, err := s.backend.TranslateText(r.Context(), text, source, target)
	if err == nil && strings.TrimSpace(translation) == "" {
		err = fmt.Errorf("backend %s returned an empty translation", s.backend.Name())
	}
	if err != nil {
		logger.Error("translating", "source", source, "target", target, "error", err)
		writeJSON(w, http.StatusInternalServerError, translateResponse{Error: domain.TranslationFailedMessage})
		return
	}

	logger.Info("translated",
		"source", source,
		"target", target,
		"chars", len([]rune(text)),
		"elapsed", time.Since(start),
	)
	writeJSON(w, http.StatusOK, translateResponse{Translation: translation})
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
		"status":  status,
		"running": running,
		"backend": s.backend.Name(),
	})
}

func cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
