// Package httpapi serves the read-mostly status surface of a running
// self-play session.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/freeeve/chaturaji/internal/selfplay"
)

const (
	defaultGamesLimit = 20
	maxGamesLimit     = 500
)

// Source is the session the API reports on. *selfplay.Orchestrator
// implements it.
type Source interface {
	Stats() selfplay.Status
	Recent(n int) []selfplay.GameSummary
	SetActiveWorkers(n int) int
}

// Handler serves the status endpoints.
type Handler struct {
	src Source
	hub *Hub
	log zerolog.Logger
}

// NewRouter creates the HTTP router. hub is optional; without it the
// websocket feed answers 503.
func NewRouter(log zerolog.Logger, src Source, hub *Hub) http.Handler {
	h := &Handler{src: src, hub: hub, log: log}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Get("/readyz", h.health)
	r.Get("/v1/status", h.status)
	r.Get("/v1/games", h.games)
	r.Get("/v1/workers", h.workers)
	r.Post("/v1/workers", h.workers)
	r.Get("/ws/games", h.feed)

	// pprof and expvar endpoints
	r.Mount("/debug", middleware.Profiler())

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.src.Stats())
}

// games returns recent finished games, newest first. ?limit=N caps the
// count (default 20, max 500).
func (h *Handler) games(w http.ResponseWriter, r *http.Request) {
	limit := defaultGamesLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = min(n, maxGamesLimit)
	}
	games := h.src.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(games),
		"games": games,
	})
}

// workers reports or sets the number of active self-play workers.
// GET: returns current count
// POST: sets count from ?workers=N query param or JSON body {"workers": N}
func (h *Handler) workers(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		st := h.src.Stats()
		writeJSON(w, http.StatusOK, map[string]any{
			"active_workers": st.ActiveWorkers,
			"max_workers":    st.MaxWorkers,
		})
		return
	}

	var workers int
	if wParam := r.URL.Query().Get("workers"); wParam != "" {
		n, err := strconv.Atoi(wParam)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid workers param"})
			return
		}
		workers = n
	} else {
		var body struct {
			Workers *int `json:"workers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Workers == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		workers = *body.Workers
	}

	n := h.src.SetActiveWorkers(workers)
	h.log.Info().Int("workers", n).Str("rid", GetRequestID(r.Context())).Msg("self-play workers updated via API")
	writeJSON(w, http.StatusOK, map[string]any{
		"active_workers": n,
		"max_workers":    h.src.Stats().MaxWorkers,
	})
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "game feed not configured"})
		return
	}
	h.hub.ServeWS(w, r)
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
