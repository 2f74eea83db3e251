package transform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webp-renditions/internal/encoder"
	"webp-renditions/internal/filerepo"
	"webp-renditions/internal/logging"

	"go.uber.org/multierr"
)

// Outcome classifies a transform result.
type Outcome string

const (
	// OutcomeOK means a rendition was produced and stored.
	OutcomeOK Outcome = "ok"
	// OutcomeAlreadyExists means the rendition was present and left alone,
	// either before encoding or because a concurrent writer stored it first.
	OutcomeAlreadyExists Outcome = "already_exists"
	// OutcomeFailed means no rendition was stored; Reason says why.
	OutcomeFailed Outcome = "failed"
)

// ReasonNoBackend is the failure reason when every backend declined or failed.
const ReasonNoBackend = "could not convert image"

// Result is the outcome of one transform call.
type Result struct {
	Outcome    Outcome `json:"outcome"`
	StoredPath string  `json:"stored_path,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// OK reports whether the rendition is in place.
func (r Result) OK() bool {
	return r.Outcome == OutcomeOK || r.Outcome == OutcomeAlreadyExists
}

// Options are per call transform options.
type Options struct {
	Overwrite bool `json:"overwrite"`
}

// Transformer produces renditions of one source file in one format. It holds
// no state beyond its construction arguments and may be discarded after use.
type Transformer struct {
	format   *Format
	src      filerepo.File
	opts     Options
	repo     filerepo.Repository
	temp     TempProvider
	prober   Prober
	observer Observer
}

// Format returns the rendition format.
func (t *Transformer) Format() *Format { return t.format }

// Source returns the source file.
func (t *Transformer) Source() filerepo.File { return t.src }

// ChangeExtension swaps the extension of p for the format's extension.
func (t *Transformer) ChangeExtension(p string) string {
	return t.format.ChangeExtension(p)
}

// CanTransform reports whether the source can be transformed right now.
func (t *Transformer) CanTransform() bool {
	return t.prober.CanTransform(t.format, t.src)
}

// Transform produces the full size rendition in the public zone. The error
// is non-nil only when no temp file could be allocated; encoding and storage
// failures are reported through the Result.
func (t *Transformer) Transform(ctx context.Context) (Result, error) {
	out := t.format.FullPath(t.src.Rel())
	return t.run(ctx, "full", filerepo.ZonePublic, out, 0)
}

// TransformLikeThumb produces a rendition scaled to width in the thumb zone,
// named like the thumbnail of the same width.
func (t *Transformer) TransformLikeThumb(ctx context.Context, width int) (Result, error) {
	if width <= 0 {
		return Result{Outcome: OutcomeFailed, Reason: fmt.Sprintf("invalid thumbnail width %d", width)}, nil
	}
	out := t.format.ThumbPath(t.src.Name, t.src.HashPath, width)
	return t.run(ctx, "thumb", filerepo.ZoneThumb, out, width)
}

func (t *Transformer) run(ctx context.Context, kind, zone, out string, width int) (res Result, err error) {
	start := time.Now()
	defer func() {
		t.observer.ObserveTransform(t.format.Key, kind, string(res.Outcome), time.Since(start).Seconds())
	}()

	logging.Debug("[%s] Out path is: %s/%s", t.format.Key, zone, out)

	if !t.opts.Overwrite {
		exists, err := t.repo.Exists(ctx, zone, out)
		switch {
		case err != nil:
			logging.Warn("[%s] Could not check %s/%s, transforming anyway: %v", t.format.Key, zone, out, err)
		case exists:
			logging.Debug("[%s] File exists, skipping transform of %s", t.format.Key, t.src.Rel())
			return Result{Outcome: OutcomeAlreadyExists, StoredPath: out}, nil
		}
	}

	tmp, err := t.temp.NewScopedTempFile("transform_", t.format.Extension)
	if err != nil {
		if !errors.Is(err, ErrTempFile) {
			err = fmt.Errorf("%w: %w", ErrTempFile, err)
		}
		return Result{Outcome: OutcomeFailed, Reason: err.Error()}, err
	}
	defer tmp.Release()

	source, release, err := t.repo.LocalCopy(ctx, filerepo.ZonePublic, t.src.Rel())
	if err != nil {
		logging.Warn("[%s] Could not read source %s: %v", t.format.Key, t.src.Rel(), err)
		return Result{Outcome: OutcomeFailed, Reason: fmt.Sprintf("could not read source: %v", err)}, nil
	}
	defer release()

	req := encoder.Request{
		Source:   source,
		Dest:     tmp.Path,
		Width:    width,
		Codec:    t.format.Codec,
		MimeType: t.src.MimeType,
	}
	if backend, errs := t.encode(ctx, req); backend == "" {
		reason := ReasonNoBackend
		if errs != nil {
			reason += ": " + errs.Error()
		}
		logging.Warn("[%s] Transform of %s failed: %s", t.format.Key, t.src.Rel(), reason)
		return Result{Outcome: OutcomeFailed, Reason: reason}, nil
	}

	if err := t.repo.Store(ctx, tmp.Path, zone, out, t.opts.Overwrite); err != nil {
		if errors.Is(err, filerepo.ErrAlreadyExists) {
			logging.Debug("[%s] %s/%s was stored concurrently", t.format.Key, zone, out)
			return Result{Outcome: OutcomeAlreadyExists, StoredPath: out}, nil
		}
		logging.Warn("[%s] Could not store %s/%s: %v", t.format.Key, zone, out, err)
		return Result{Outcome: OutcomeFailed, Reason: fmt.Sprintf("could not store %s: %v", out, err)}, nil
	}

	logging.Info("[%s] Stored %s/%s", t.format.Key, zone, out)
	return Result{Outcome: OutcomeOK, StoredPath: out}, nil
}

// encode runs the backend chain and returns the name of the first backend
// that succeeded, or "" along with the combined errors of failed attempts.
func (t *Transformer) encode(ctx context.Context, req encoder.Request) (string, error) {
	var errs error
	for _, b := range t.format.Backends {
		ok, err := b.Transcode(ctx, req)
		switch {
		case ok:
			t.observer.ObserveBackend(t.format.Key, b.Name(), "success")
			logging.Debug("[%s] %s backend converted %s", t.format.Key, b.Name(), t.src.Rel())
			return b.Name(), nil
		case err != nil:
			t.observer.ObserveBackend(t.format.Key, b.Name(), "error")
			logging.Debug("[%s] %s backend failed: %v", t.format.Key, b.Name(), err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		default:
			t.observer.ObserveBackend(t.format.Key, b.Name(), "unavailable")
		}
		if ctx.Err() != nil {
			return "", multierr.Append(errs, ctx.Err())
		}
	}
	return "", errs
}
