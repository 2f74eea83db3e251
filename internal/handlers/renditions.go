package handlers

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"webp-renditions/internal/hooks"
	"webp-renditions/internal/jobs"
	"webp-renditions/internal/transform"
)

// GetSources handles GET /api/sources?title=<title>&width=<px>. Without a
// width the sources of the full size renditions are returned.
func (h *Handlers) GetSources(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if strings.TrimSpace(title) == "" {
		writeError(w, r, badRequest("title is required"))
		return
	}

	width := 0
	if raw := r.URL.Query().Get("width"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, badRequest("invalid width %q", raw))
			return
		}
		width = n
	}

	sources, err := h.hooks.PictureSources(r.Context(), title, width)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sources == nil {
		sources = []hooks.Source{}
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSONResponse(w, http.StatusOK, sources)
}

// TransformRequest is the body of POST /api/transform.
type TransformRequest struct {
	jobs.TransformImageParams
	// Async queues the job instead of running it in the request.
	Async bool `json:"async,omitempty"`
}

// TransformQueuedResponse answers an async transform request.
type TransformQueuedResponse struct {
	ID     string `json:"id,omitempty"`
	Queued bool   `json:"queued"`
}

// Transform handles POST /api/transform: it produces one rendition, either
// in the request or through the job queue.
func (h *Handlers) Transform(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, r, badRequest("title is required"))
		return
	}
	if req.Width < 0 {
		writeError(w, r, badRequest("width must not be negative"))
		return
	}

	if req.Async {
		if req.Transformer == "" {
			writeError(w, r, jobs.ErrMissingTransformer)
			return
		}
		if _, ok := h.factory.Format(req.Transformer); !ok {
			writeError(w, r, badRequest("transformer %q not recognized", req.Transformer))
			return
		}
		id, queued, err := h.queue.Push(r.Context(), jobs.NewTransformImage(req.TransformImageParams))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSONResponse(w, http.StatusAccepted, TransformQueuedResponse{ID: id, Queued: queued})
		return
	}

	report, err := h.exec.Execute(r.Context(), req.TransformImageParams)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, report)
}

// FormatInfo describes a registered rendition format.
type FormatInfo struct {
	Key       string                    `json:"key"`
	Extension string                    `json:"extension"`
	MimeType  string                    `json:"mime_type"`
	Enabled   bool                      `json:"enabled"`
	Supported bool                      `json:"supported"`
	Backends  []transform.BackendStatus `json:"backends"`
}

// enabledFormats resolves the keys the hooks currently produce, so a
// reloaded configuration shows up without rebuilding the factory.
func (h *Handlers) enabledFormats() []*transform.Format {
	keys := h.hooks.Enabled()
	out := make([]*transform.Format, 0, len(keys))
	for _, key := range keys {
		if f, ok := h.factory.Format(key); ok {
			out = append(out, f)
		}
	}
	return out
}

func (h *Handlers) formatInfos() []FormatInfo {
	enabled := h.enabledFormats()
	prober := h.factory.Prober()

	infos := make([]FormatInfo, 0, len(h.factory.Keys()))
	for _, key := range h.factory.Keys() {
		f, _ := h.factory.Format(key)
		infos = append(infos, FormatInfo{
			Key:       f.Key,
			Extension: f.Extension,
			MimeType:  f.MimeType,
			Enabled:   slices.Contains(enabled, f),
			Supported: prober.IsFormatSupported(f),
			Backends:  prober.Report(f),
		})
	}
	return infos
}

// GetFormats handles GET /api/formats.
func (h *Handlers) GetFormats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONResponse(w, http.StatusOK, h.formatInfos())
}
