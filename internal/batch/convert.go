package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"webp-renditions/internal/filerepo"
	"webp-renditions/internal/jobqueue"
	"webp-renditions/internal/jobs"
	"webp-renditions/internal/logging"
	"webp-renditions/internal/transform"
)

// convertible matches the titles conversion considers.
var convertible = regexp.MustCompile(`(?i)(jpe?g|png)`)

// Enqueuer accepts jobs. *jobqueue.Queue implements it.
type Enqueuer interface {
	Push(ctx context.Context, spec jobqueue.Spec) (string, bool, error)
}

// Executor runs a rendition job inline. *jobs.TransformImage implements it.
type Executor interface {
	Execute(ctx context.Context, p jobs.TransformImageParams) (jobs.Report, error)
}

// ConvertOptions select what Convert produces.
type ConvertOptions struct {
	// Titles limits the run to these titles; otherwise the public zone is
	// listed.
	Titles      []string
	TitlePrefix string
	// FileType keeps names ending in this extension (without dot).
	FileType   string
	ThumbsOnly bool
	NoThumbs   bool
	// ThumbSizes overrides the configured thumbnail widths.
	ThumbSizes []int
	Overwrite  bool
	// InQueue pushes jobs instead of running them.
	InQueue bool
}

// Summary counts what a conversion run did.
type Summary struct {
	Queued int
	Done   int
	Failed int
}

// Converter creates renditions for existing uploads.
type Converter struct {
	factory    *transform.Factory
	repo       filerepo.Repository
	hashLevels int
	queue      Enqueuer
	exec       Executor
	out        io.Writer
	errOut     io.Writer
}

// NewConverter creates a converter writing progress to out and job errors
// to errOut. queue may be nil when nothing is pushed.
func NewConverter(factory *transform.Factory, repo filerepo.Repository, hashLevels int, queue Enqueuer, exec Executor, out, errOut io.Writer) *Converter {
	return &Converter{
		factory:    factory,
		repo:       repo,
		hashLevels: hashLevels,
		queue:      queue,
		exec:       exec,
		out:        out,
		errOut:     errOut,
	}
}

// Titles returns the titles a run works on.
func (c *Converter) Titles(ctx context.Context, opts ConvertOptions) ([]string, error) {
	if len(opts.Titles) > 0 {
		titles := make([]string, 0, len(opts.Titles))
		for _, t := range opts.Titles {
			if t = filerepo.NormalizeTitle(t); t != "" {
				titles = append(titles, t)
			}
		}
		return titles, nil
	}

	files, err := c.repo.List(ctx, filerepo.ZonePublic, "")
	if err != nil {
		return nil, fmt.Errorf("could not list uploads: %w", err)
	}

	var prefix string
	if opts.TitlePrefix != "" {
		prefix = filerepo.NormalizeTitle(opts.TitlePrefix)
	}

	var titles []string
	for _, rel := range files {
		dir, name := path.Split(rel)
		// Renditions and thumbnails live below other prefixes
		if dir != filerepo.HashPath(name, c.hashLevels) {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		if opts.FileType != "" && !strings.HasSuffix(name, opts.FileType) {
			continue
		}
		titles = append(titles, name)
	}

	if len(titles) == 0 {
		fmt.Fprintln(c.out, "Query does not match any files.")
	}
	return titles, nil
}

// Plan returns the jobs a run creates, in order.
func (c *Converter) Plan(ctx context.Context, opts ConvertOptions) ([]jobs.TransformImageParams, error) {
	titles, err := c.Titles(ctx, opts)
	if err != nil {
		return nil, err
	}

	sizes := opts.ThumbSizes
	if sizes == nil {
		sizes = c.factory.Config().ThumbSizes
	}

	var plan []jobs.TransformImageParams
	for _, title := range titles {
		if !convertible.MatchString(title) {
			continue
		}
		for _, f := range c.factory.Enabled() {
			if !opts.ThumbsOnly {
				plan = append(plan, jobs.TransformImageParams{Transformer: f.Key, Title: title, Overwrite: opts.Overwrite})
			}
			if !opts.NoThumbs {
				for _, w := range sizes {
					plan = append(plan, jobs.TransformImageParams{Transformer: f.Key, Title: title, Width: w, Overwrite: opts.Overwrite})
				}
			}
		}
	}
	return plan, nil
}

// Convert plans the run and queues or executes every job. A failing job is
// reported and does not stop the run.
func (c *Converter) Convert(ctx context.Context, opts ConvertOptions) (Summary, error) {
	plan, err := c.Plan(ctx, opts)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	if opts.InQueue {
		if c.queue == nil {
			return sum, fmt.Errorf("no job queue configured")
		}
		for _, p := range plan {
			_, queued, err := c.queue.Push(ctx, jobs.NewTransformImage(p))
			if err != nil {
				return sum, err
			}
			if queued {
				sum.Queued++
			}
		}
		logging.Info("Queued %d of %d rendition jobs", sum.Queued, len(plan))
		return sum, nil
	}

	for _, p := range plan {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		report, err := c.exec.Execute(ctx, p)
		if err != nil {
			sum.Failed++
			fmt.Fprintf(c.errOut, "Job %s failed: %v\n", p.Title, err)
			continue
		}
		sum.Done++
		params, _ := json.Marshal(p)
		result, _ := json.Marshal(report)
		fmt.Fprintf(c.out, "Done: %s (%s)\n", params, result)
	}
	return sum, nil
}
