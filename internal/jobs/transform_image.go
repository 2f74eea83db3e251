package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"webp-renditions/internal/filerepo"
	"webp-renditions/internal/jobqueue"
	"webp-renditions/internal/logging"
	"webp-renditions/internal/transform"
)

// TypeTransformImage is the queue type of rendition jobs.
const TypeTransformImage = "transformImage"

// ErrMissingTransformer is returned for jobs without a format key.
var ErrMissingTransformer = errors.New("job has no transformer")

// MissingFileError reports a job whose source file is gone.
type MissingFileError struct {
	Title string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("file %q does not exist", e.Title)
}

// Unwrap lets errors.Is match filerepo.ErrNotFound.
func (e *MissingFileError) Unwrap() error { return filerepo.ErrNotFound }

// TransformImageParams are the parameters of a rendition job. Width 0
// requests the full size rendition.
type TransformImageParams struct {
	Transformer string `json:"transformer"`
	Title       string `json:"title"`
	Width       int    `json:"width,omitempty"`
	Overwrite   bool   `json:"overwrite,omitempty"`
}

// DedupKey identifies the rendition the job produces.
func (p TransformImageParams) DedupKey() string {
	return p.Transformer + "|" + filerepo.NormalizeTitle(p.Title) + "|" +
		strconv.Itoa(p.Width) + "|" + strconv.FormatBool(p.Overwrite)
}

// NewTransformImage returns the queue spec for p.
func NewTransformImage(p TransformImageParams) jobqueue.Spec {
	return jobqueue.Spec{
		Type:     TypeTransformImage,
		Params:   p,
		DedupKey: p.DedupKey(),
	}
}

// Report describes what a rendition job did.
type Report struct {
	Params  TransformImageParams `json:"params"`
	Skipped bool                 `json:"skipped,omitempty"`
	Result  transform.Result     `json:"result"`
}

func (r Report) String() string {
	kind := "full size"
	if r.Params.Width > 0 {
		kind = strconv.Itoa(r.Params.Width) + "px"
	}
	switch {
	case r.Skipped:
		return fmt.Sprintf("%s %s of %s skipped", r.Params.Transformer, kind, r.Params.Title)
	case r.Result.Outcome == transform.OutcomeAlreadyExists:
		return fmt.Sprintf("%s %s of %s already exists", r.Params.Transformer, kind, r.Params.Title)
	default:
		return fmt.Sprintf("%s %s of %s stored at %s", r.Params.Transformer, kind, r.Params.Title, r.Result.StoredPath)
	}
}

// TransformImage runs rendition jobs.
type TransformImage struct {
	factory    *transform.Factory
	repo       filerepo.Repository
	hashLevels int
}

// NewTransformImageHandler creates the handler for TypeTransformImage jobs.
func NewTransformImageHandler(factory *transform.Factory, repo filerepo.Repository, hashLevels int) *TransformImage {
	return &TransformImage{factory: factory, repo: repo, hashLevels: hashLevels}
}

// Run implements jobqueue.Handler.
func (h *TransformImage) Run(ctx context.Context, job *jobqueue.Job) error {
	var p TransformImageParams
	if err := job.Decode(&p); err != nil {
		return err
	}
	report, err := h.Execute(ctx, p)
	if err != nil {
		return err
	}
	logging.Debug("Job %s: %s", job.ID, report)
	return nil
}

// Execute produces the rendition p describes. A source the format cannot
// handle right now is skipped without error. A rendition that already
// exists counts as success.
func (h *TransformImage) Execute(ctx context.Context, p TransformImageParams) (Report, error) {
	report := Report{Params: p}

	if p.Transformer == "" {
		return report, ErrMissingTransformer
	}

	logging.Debug("Running transform job for transformer %s", p.Transformer)

	file, err := filerepo.Lookup(ctx, h.repo, p.Title, h.hashLevels)
	if errors.Is(err, filerepo.ErrNotFound) {
		return report, &MissingFileError{Title: p.Title}
	}
	if err != nil {
		return report, err
	}

	format, ok := h.factory.Format(p.Transformer)
	if !ok {
		return report, fmt.Errorf("%w: %s", transform.ErrInvalidFormat, p.Transformer)
	}
	if !h.factory.Prober().CanTransform(format, *file) {
		logging.Debug("%s cannot transform %s (%s), skipping", p.Transformer, file.Rel(), file.MimeType)
		report.Skipped = true
		return report, nil
	}

	t, err := h.factory.CreateTransformer(p.Transformer, file, transform.Options{Overwrite: p.Overwrite})
	if err != nil {
		return report, err
	}

	var res transform.Result
	if p.Width > 0 {
		res, err = t.TransformLikeThumb(ctx, p.Width)
	} else {
		res, err = t.Transform(ctx)
	}
	report.Result = res
	if err != nil {
		return report, err
	}
	if !res.OK() {
		return report, errors.New(res.Reason)
	}

	logging.Debug("Transform success")
	return report, nil
}
