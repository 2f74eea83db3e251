package handlers

import (
	"net/http"
	"strconv"

	"webp-renditions/internal/jobqueue"
)

// QueueResponse is the body of GET /api/queue.
type QueueResponse struct {
	Stats jobqueue.Stats `json:"stats"`
	Jobs  []jobqueue.Job `json:"jobs,omitempty"`
}

// GetQueue handles GET /api/queue. With ?status= it also lists the most
// recently updated jobs in that state, at most ?limit= of them.
func (h *Handlers) GetQueue(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := QueueResponse{Stats: stats}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := jobqueue.Status(raw)
		switch status {
		case jobqueue.StatusPending, jobqueue.StatusRunning, jobqueue.StatusDone, jobqueue.StatusFailed:
		default:
			writeError(w, r, badRequest("unknown status %q", raw))
			return
		}

		limit := 0
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 0 {
				writeError(w, r, badRequest("invalid limit %q", l))
				return
			}
			limit = n
		}

		resp.Jobs, err = h.queue.Recent(r.Context(), status, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSONResponse(w, http.StatusOK, resp)
}
