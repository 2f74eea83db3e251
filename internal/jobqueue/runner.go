package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"webp-renditions/internal/logging"
	"webp-renditions/internal/metrics"
)

// Handler executes one job type.
type Handler interface {
	Run(ctx context.Context, job *Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *Job) error

// Run implements Handler.
func (f HandlerFunc) Run(ctx context.Context, job *Job) error { return f(ctx, job) }

// Gate holds workers back before they claim a job. memory.Monitor
// implements it.
type Gate interface {
	Wait(ctx context.Context) error
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Workers      int
	PollInterval time.Duration
	Gate         Gate
}

// Runner claims jobs from a Queue and dispatches them to handlers by type.
type Runner struct {
	queue    *Queue
	opts     RunnerOptions
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRunner creates a runner. Workers below one become one.
func NewRunner(queue *Queue, opts RunnerOptions) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Runner{
		queue:    queue,
		opts:     opts,
		handlers: make(map[string]Handler),
	}
}

// Handle registers the handler for a job type.
func (r *Runner) Handle(jobType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = h
}

func (r *Runner) handler(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Run starts the workers and blocks until ctx is cancelled and every
// in-flight job has finished.
func (r *Runner) Run(ctx context.Context) {
	logging.Info("Starting %d job workers (poll interval %v)", r.opts.Workers, r.opts.PollInterval)

	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.work(ctx, id)
		}(i)
	}
	wg.Wait()

	logging.Info("Job workers stopped")
}

func (r *Runner) work(ctx context.Context, id int) {
	for {
		if r.opts.Gate != nil {
			if err := r.opts.Gate.Wait(ctx); err != nil {
				return
			}
		}

		ran, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			logging.Error("Worker %d: %v", id, err)
		}
		if ran {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.opts.PollInterval):
		}
	}
}

// RunOnce claims and executes a single job. It reports false when the
// queue was empty. A failing job is recorded on the queue and is not an
// error here.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	job, err := r.queue.Claim(ctx)
	if errors.Is(err, ErrEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	runErr := r.execute(ctx, job)
	if runErr != nil {
		logging.Warn("Job %s (%s) failed: %v", job.ID, job.Type, runErr)
		// Record the outcome even when ctx was cancelled mid-job
		if err := r.queue.Fail(context.WithoutCancel(ctx), job.ID, runErr); err != nil {
			return true, err
		}
		return true, nil
	}

	logging.Debug("Job %s (%s) done", job.ID, job.Type)
	return true, r.queue.Complete(context.WithoutCancel(ctx), job.ID)
}

func (r *Runner) execute(ctx context.Context, job *Job) (err error) {
	h, ok := r.handler(job.Type)
	if !ok {
		metrics.JobsTotal.WithLabelValues(job.Type, "error").Inc()
		return fmt.Errorf("no handler for job type %q", job.Type)
	}

	metrics.WorkersBusy.Inc()
	start := time.Now()
	defer func() {
		metrics.WorkersBusy.Dec()
		metrics.JobDuration.WithLabelValues(job.Type).Observe(time.Since(start).Seconds())

		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		metrics.JobsTotal.WithLabelValues(job.Type, outcome).Inc()
	}()

	return h.Run(ctx, job)
}

// Drain runs jobs on the calling goroutine until the queue is empty.
// It returns how many jobs ran.
func (r *Runner) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		ran, err := r.RunOnce(ctx)
		if err != nil {
			return n, err
		}
		if !ran {
			return n, nil
		}
		n++
	}
}
