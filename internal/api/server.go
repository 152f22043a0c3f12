// Package api serves the small slice of the WLED JSON API the hub needs to
// adopt the emulated controller, plus bridge diagnostics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledbridge/internal/device"
	"github.com/dokzlo13/wledbridge/internal/hass"
	"github.com/dokzlo13/wledbridge/internal/ledger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	maxBodySize         = 1 << 20
)

// History returns recent dispatch ledger entries, newest first.
type History interface {
	Recent(limit int) ([]*ledger.Entry, error)
	GetByEntity(entityID string, limit int) ([]*ledger.Entry, error)
}

// Server is the control-plane HTTP server.
type Server struct {
	addr       string
	identity   device.Identity
	status     *device.Status
	history    History
	now        func() time.Time
	httpServer *http.Server
}

// NewServer creates a control-plane server. history may be nil.
func NewServer(host string, port int, identity device.Identity, status *device.Status, history History) *Server {
	return &Server{
		addr:     fmt.Sprintf("%s:%d", host, port),
		identity: identity,
		status:   status,
		history:  history,
		now:      time.Now,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.StripSlashes)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/json", func(r chi.Router) {
		r.Get("/", s.handleDocument)
		r.Get("/info", s.handleInfo)
		r.Get("/state", s.handleState)
		r.Post("/state", s.handleUpdateState)
		r.Post("/live", s.handleLive)
	})

	r.Get("/bridge/history", s.handleHistory)

	return r
}

// Listen binds the control-plane address.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind control-plane API on %s: %w", s.addr, err)
	}
	return ln, nil
}

// Serve handles requests on ln. It blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", ln.Addr().String()).Msg("Starting control-plane API")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Control-plane API shutdown error")
		}
	}()

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "<html><body><h1>%s</h1><p>WLED bridge for Home Assistant</p></body></html>",
		html.EscapeString(s.identity.Name))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"live":   s.status.Live(s.now()),
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, _ *http.Request) {
	now := s.now()
	writeJSON(w, http.StatusOK, Document{
		State: buildState(s.identity, s.status, now),
		Info:  buildInfo(s.identity, s.status, now),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, buildInfo(s.identity, s.status, s.now()))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, buildState(s.identity, s.status, s.now()))
}

// handleUpdateState is called by the hub before it starts streaming.
// The body is parsed leniently: unknown or malformed input only marks the device live.
func (s *Server) handleUpdateState(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	s.status.MarkLive(now)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read state update body")
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var update StateUpdate
	if len(body) > 0 {
		if err := json.Unmarshal(body, &update); err != nil {
			log.Debug().Err(err).Int("body_len", len(body)).Msg("Ignoring malformed state update")
		}
	}
	if update.On != nil {
		s.status.SetOn(*update.On)
	}
	if update.Brightness != nil {
		s.status.SetBrightness(*update.Brightness)
	}

	log.Debug().
		Bool("on", s.status.On()).
		Uint8("bri", s.status.Brightness()).
		Msg("State pushed by hub")

	writeJSON(w, http.StatusOK, buildState(s.identity, s.status, now))
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	n, err := io.Copy(io.Discard, io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Debug().Err(err).Msg("Failed to read live payload")
	}
	log.Debug().Int64("bytes", n).Msg("Live payload received")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "dispatch ledger disabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var entries []*ledger.Entry
	var err error
	if entity := r.URL.Query().Get("entity"); entity != "" {
		entries, err = s.history.GetByEntity(hass.EntityID(entity), limit)
	} else {
		entries, err = s.history.Recent(limit)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to read dispatch ledger")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read ledger"})
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
