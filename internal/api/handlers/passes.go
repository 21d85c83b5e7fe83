package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eargollo/autofilebot/internal/history"
)

// PassesHandler handles pass-related API endpoints.
type PassesHandler struct {
	Store PassStore // nil when history is disabled
	Queue Trigger
}

// Create handles POST /api/passes and queues a manual pass. A request made
// while a follow-up pass is already pending is folded into it.
func (h *PassesHandler) Create(w http.ResponseWriter, r *http.Request) {
	queued := h.Queue.Trigger("api")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"queued":    queued,
		"coalesced": !queued,
		"queue":     h.Queue.State(),
	})
}

// List handles GET /api/passes and returns pass history newest first.
func (h *PassesHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, r, http.StatusNotFound, "HISTORY_DISABLED", "Pass history is disabled")
		return
	}
	limit, offset := parsePagination(r)

	passes, total, err := h.Store.List(r.Context(), limit, offset)
	if err != nil {
		slog.Error("passes list", "error", err)
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[history.Pass]{
		Items:  passes,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /api/passes/{id}.
func (h *PassesHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, r, http.StatusNotFound, "HISTORY_DISABLED", "Pass history is disabled")
		return
	}
	p, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "Pass not found")
		return
	}
	if err != nil {
		slog.Error("passes get", "error", err)
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}
