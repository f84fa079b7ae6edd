// Package devserver is a local stub of the configuration service. It serves
// one snapshot document over the same pull and push protocol the SDK speaks,
// so client code and the CLI can run end to end without the real service.
package devserver

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/TimurManjosov/goappconfig/internal/models"
)

const heartbeatInterval = 25 * time.Second

// Server holds the current document and the connected push subscribers.
type Server struct {
	cfg *Config
	fs  afero.Fs
	log zerolog.Logger

	mu   sync.Mutex
	doc  []byte
	etag string
	subs map[chan string]struct{}
}

// New returns a stub server. A missing snapshot file is not an error; the
// server starts with an empty document and accepts one via the admin
// endpoint.
func New(cfg *Config, fs afero.Fs, log zerolog.Logger) (*Server, error) {
	s := &Server{
		cfg:  cfg,
		fs:   fs,
		log:  log,
		doc:  []byte(`{"features":[],"properties":[],"segments":[]}`),
		subs: make(map[chan string]struct{}),
	}
	s.etag = etagFor(s.doc)

	if cfg.SnapshotPath != "" {
		data, err := afero.ReadFile(fs, cfg.SnapshotPath)
		switch {
		case err == nil:
			if _, perr := models.ParseConfiguration(data); perr != nil {
				return nil, fmt.Errorf("snapshot %s: %w", cfg.SnapshotPath, perr)
			}
			s.doc = data
			s.etag = etagFor(data)
			log.Info().Str("path", cfg.SnapshotPath).Msg("serving snapshot file")
		default:
			log.Warn().Err(err).Str("path", cfg.SnapshotPath).Msg("snapshot file not readable, starting empty")
		}
	}
	return s, nil
}

func etagFor(doc []byte) string {
	return fmt.Sprintf("%x", xxhash.Sum64(doc))
}

// Router builds the HTTP surface. The events route sits outside the
// timeout middleware; its connections are held open indefinitely.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/apprapp/events/v1/instances/{guid}", s.handleEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))

		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		r.Get("/apprapp/feature/v1/instances/{guid}/collections/{collection}/config", s.handleConfig)
		r.Post("/apprapp/events/v1/instances/{guid}/usage", s.handleUsage)
		r.Put("/admin/config", s.authAdmin(s.handleReplace))
	})

	return r
}

func (s *Server) handleConfig(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	doc, etag := s.doc, s.etag
	s.mu.Unlock()

	if inm := req.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etag)
	_, _ = w.Write(doc)
}

// handleEvents is the push endpoint. Each update broadcasts one frame
// carrying the new etag; clients treat any frame as an invalidation
// signal.
func (s *Server) handleEvents(w http.ResponseWriter, req *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, unsub := s.subscribe()
	defer unsub()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-req.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			fl.Flush()
		case etag, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "event: configuration\ndata: %s\n\n", etag)
			fl.Flush()
		}
	}
}

func (s *Server) handleUsage(w http.ResponseWriter, req *http.Request) {
	var body struct {
		CollectionID  string            `json:"collection_id"`
		EnvironmentID string            `json:"environment_id"`
		Usages        []json.RawMessage `json:"usages"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.log.Info().
		Str("collection", body.CollectionID).
		Str("environment", body.EnvironmentID).
		Int("usages", len(body.Usages)).
		Msg("usage batch received")
	w.WriteHeader(http.StatusAccepted)
}

// handleReplace swaps the served document, persists it, and broadcasts
// an invalidation to every subscriber.
func (s *Server) handleReplace(w http.ResponseWriter, req *http.Request) {
	var doc json.RawMessage
	if err := json.NewDecoder(req.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if _, err := models.ParseConfiguration(doc); err != nil {
		writeError(w, http.StatusBadRequest, "not a configuration document")
		return
	}

	etag := etagFor(doc)
	s.mu.Lock()
	s.doc = doc
	s.etag = etag
	s.mu.Unlock()

	if s.cfg.SnapshotPath != "" {
		if err := afero.WriteFile(s.fs, s.cfg.SnapshotPath, doc, 0o600); err != nil {
			s.log.Error().Err(err).Msg("persisting replaced snapshot failed")
		}
	}

	s.broadcast(etag)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "etag": etag})
}

func (s *Server) subscribe() (chan string, func()) {
	ch := make(chan string, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}
}

// broadcast notifies all subscribers without blocking on slow clients.
func (s *Server) broadcast(etag string) {
	s.mu.Lock()
	for ch := range s.subs {
		select {
		case ch <- etag:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Server) authAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		got := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if got == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.AdminAPIKey)) != 1 {
			writeError(w, http.StatusForbidden, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": msg,
	})
}
