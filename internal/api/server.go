// Package api exposes the daemon's observation surface: status, the journal
// tail, Prometheus metrics, and a websocket event stream.
package api

import (
	"net/http"
	"time"

	"intaked/internal/event"
	"intaked/internal/journal"
	"intaked/internal/logging"
	"intaked/internal/metrics"
	"intaked/internal/state"
	"intaked/internal/version"
)

// Handler carries the daemon components the HTTP surface reads from.
type Handler struct {
	Logger         *logging.Logger
	Registry       *metrics.Registry
	States         *state.Store
	Bus            *event.Bus[event.Event]
	JournalPath    string
	Roots          []string
	Profile        string
	AuthToken      string
	AllowedOrigins []string
	StartedAt      time.Time
}

// RegisterRoutes attaches all handlers to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	wrap := func(handler http.HandlerFunc) http.Handler {
		return loggingMiddleware(h.Logger, requireToken(h.AuthToken, handler))
	}
	mux.Handle("/api/status", wrap(h.handleStatus))
	mux.Handle("/api/journal", wrap(h.handleJournal))
	mux.Handle("/api/events", loggingMiddleware(h.Logger, http.HandlerFunc(h.handleEvents)))
	mux.Handle("/metrics", wrap(h.handleMetrics))
	mux.Handle("/healthz", http.HandlerFunc(h.handleHealth))
}

type statusResponse struct {
	Version       version.Info     `json:"version"`
	ServerTime    time.Time        `json:"server_time"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Roots         []string         `json:"roots"`
	Profile       string           `json:"profile"`
	Completed     int              `json:"dispatches_completed"`
	Failed        int              `json:"dispatches_failed"`
	Metrics       metrics.Snapshot `json:"metrics"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	response := statusResponse{
		Version:       version.Get(),
		ServerTime:    time.Now().UTC(),
		UptimeSeconds: int64(time.Since(h.StartedAt).Seconds()),
		Roots:         h.Roots,
		Profile:       h.Profile,
	}
	if h.Registry != nil {
		response.Metrics = h.Registry.Snapshot()
	}
	if h.States != nil {
		completed, failed, err := h.States.Count()
		if err != nil {
			h.logWarn(r, "count dispatch records", err)
		} else {
			response.Completed = completed
			response.Failed = failed
		}
	}
	writeJSON(w, http.StatusOK, response)
}

type journalResponse struct {
	Entries []journalEntry `json:"entries"`
}

type journalEntry struct {
	At     time.Time `json:"at"`
	Event  string    `json:"event"`
	Detail string    `json:"detail"`
}

const defaultJournalLimit = 50
const maxJournalLimit = 1000

func (h *Handler) handleJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), defaultJournalLimit, maxJournalLimit)
	entries, err := journal.ReadLast(h.JournalPath, limit)
	if err != nil {
		h.logWarn(r, "read journal", err)
		writeError(w, http.StatusInternalServerError, "journal unavailable")
		return
	}

	response := journalResponse{Entries: make([]journalEntry, 0, len(entries))}
	for _, entry := range entries {
		response.Entries = append(response.Entries, journalEntry{
			At:     entry.At,
			Event:  string(entry.Event),
			Detail: entry.Detail,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	registry := h.Registry
	if registry == nil {
		registry = metrics.Default
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := registry.WritePrometheus(w); err != nil {
		h.logWarn(r, "write metrics", err)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (h *Handler) logWarn(r *http.Request, message string, err error) {
	if h.Logger == nil {
		return
	}
	h.Logger.Warn(message, map[string]string{
		"path":  r.URL.Path,
		"error": err.Error(),
	})
}
