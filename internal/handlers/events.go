package handlers

import (
	"net/http"
	"strings"
)

// TitleRequest is the body of single-file events.
type TitleRequest struct {
	Title string `json:"title"`
}

// ThumbnailRequest is the body of the thumbnail event.
type ThumbnailRequest struct {
	Title string `json:"title"`
	Width int    `json:"width"`
}

// MoveRequest is the body of the move event.
type MoveRequest struct {
	OldTitle string `json:"old_title"`
	NewTitle string `json:"new_title"`
}

// QueuedResponse reports how many jobs an event queued.
type QueuedResponse struct {
	Queued int `json:"queued"`
}

func readTitle(r *http.Request) (string, error) {
	var req TitleRequest
	if err := decodeBody(r, &req); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Title) == "" {
		return "", badRequest("title is required")
	}
	return req.Title, nil
}

// UploadComplete handles POST /api/events/upload.
func (h *Handlers) UploadComplete(w http.ResponseWriter, r *http.Request) {
	title, err := readTitle(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.hooks.UploadComplete(r.Context(), title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, QueuedResponse{Queued: n})
}

// FileUndeleteComplete handles POST /api/events/undelete.
func (h *Handlers) FileUndeleteComplete(w http.ResponseWriter, r *http.Request) {
	title, err := readTitle(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.hooks.FileUndeleteComplete(r.Context(), title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, QueuedResponse{Queued: n})
}

// FileTransformed handles POST /api/events/thumbnail.
func (h *Handlers) FileTransformed(w http.ResponseWriter, r *http.Request) {
	var req ThumbnailRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, r, badRequest("title is required"))
		return
	}
	if req.Width <= 0 {
		writeError(w, r, badRequest("width must be positive"))
		return
	}

	n, err := h.hooks.FileTransformed(r.Context(), req.Title, req.Width)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, QueuedResponse{Queued: n})
}

// FileDeleteComplete handles POST /api/events/delete.
func (h *Handlers) FileDeleteComplete(w http.ResponseWriter, r *http.Request) {
	title, err := readTitle(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.hooks.FileDeleteComplete(r.Context(), title); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "ok")
}

// PurgeThumbnails handles POST /api/events/purge-thumbnails.
func (h *Handlers) PurgeThumbnails(w http.ResponseWriter, r *http.Request) {
	title, err := readTitle(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.hooks.LocalFilePurgeThumbnails(r.Context(), title); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "ok")
}

// PageMoveComplete handles POST /api/events/move.
func (h *Handlers) PageMoveComplete(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.OldTitle) == "" || strings.TrimSpace(req.NewTitle) == "" {
		writeError(w, r, badRequest("old_title and new_title are required"))
		return
	}
	if err := h.hooks.PageMoveComplete(r.Context(), req.OldTitle, req.NewTitle); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "ok")
}
