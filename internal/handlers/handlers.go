package handlers

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"webp-renditions/internal/hooks"
	"webp-renditions/internal/jobqueue"
	"webp-renditions/internal/jobs"
	"webp-renditions/internal/transform"

	"github.com/gorilla/mux"
)

// Queue is the part of the job queue the API uses.
type Queue interface {
	Push(ctx context.Context, spec jobqueue.Spec) (string, bool, error)
	Stats(ctx context.Context) (jobqueue.Stats, error)
	Recent(ctx context.Context, status jobqueue.Status, limit int) ([]jobqueue.Job, error)
}

// Executor runs a rendition job inline. *jobs.TransformImage implements it.
type Executor interface {
	Execute(ctx context.Context, p jobs.TransformImageParams) (jobs.Report, error)
}

type Handlers struct {
	hooks   *hooks.Hooks
	factory *transform.Factory
	exec    Executor
	queue   Queue

	started time.Time
	ready   atomic.Bool
}

func New(h *hooks.Hooks, factory *transform.Factory, exec Executor, queue Queue) *Handlers {
	return &Handlers{
		hooks:   h,
		factory: factory,
		exec:    exec,
		queue:   queue,
		started: time.Now(),
	}
}

// SetReady marks the service ready (or not) for /readyz.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Register adds every route to r.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	events := api.PathPrefix("/events").Subrouter()
	events.HandleFunc("/upload", h.UploadComplete).Methods(http.MethodPost)
	events.HandleFunc("/undelete", h.FileUndeleteComplete).Methods(http.MethodPost)
	events.HandleFunc("/thumbnail", h.FileTransformed).Methods(http.MethodPost)
	events.HandleFunc("/delete", h.FileDeleteComplete).Methods(http.MethodPost)
	events.HandleFunc("/move", h.PageMoveComplete).Methods(http.MethodPost)
	events.HandleFunc("/purge-thumbnails", h.PurgeThumbnails).Methods(http.MethodPost)

	api.HandleFunc("/sources", h.GetSources).Methods(http.MethodGet)
	api.HandleFunc("/transform", h.Transform).Methods(http.MethodPost)
	api.HandleFunc("/formats", h.GetFormats).Methods(http.MethodGet)
	api.HandleFunc("/queue", h.GetQueue).Methods(http.MethodGet)
}
