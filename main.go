package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webp-renditions/internal/encoder"
	"webp-renditions/internal/filerepo"
	"webp-renditions/internal/filesystem"
	"webp-renditions/internal/handlers"
	"webp-renditions/internal/hooks"
	"webp-renditions/internal/jobqueue"
	"webp-renditions/internal/jobs"
	"webp-renditions/internal/logging"
	"webp-renditions/internal/memory"
	"webp-renditions/internal/metrics"
	"webp-renditions/internal/middleware"
	"webp-renditions/internal/startup"
	"webp-renditions/internal/transform"
	"webp-renditions/internal/watch"
	"webp-renditions/internal/workers"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// queueStatsProvider adapts the job queue to the metrics collector.
func queueStatsProvider(ctx context.Context, q interface {
	Stats(ctx context.Context) (jobqueue.Stats, error)
},
) metrics.StatsProvider {
	return metrics.StatsProviderFunc(func() metrics.Stats {
		s, err := q.Stats(ctx)
		if err != nil {
			logging.Warn("failed to read queue stats: %v", err)
			return metrics.Stats{}
		}
		return metrics.Stats{Pending: s.Pending, Running: s.Running, Done: s.Done, Failed: s.Failed}
	})
}

// volumeMap labels filesystem metrics by the local paths in use.
func volumeMap(config *startup.Config) map[string]string {
	volumes := map[string]string{"queue": config.Queue.Path}
	if config.Repository.Backend == "local" {
		volumes["public"] = config.Repository.Local.Public
		volumes["thumb"] = config.Repository.Local.Thumb
	}
	if config.Transform.TempDir != "" {
		volumes["temp"] = config.Transform.TempDir
	}
	return volumes
}

func main() {
	startTime := time.Now()
	configPath := flag.String("config", "", "path to the YAML config file (default $"+startup.ConfigEnv+")")
	flag.Parse()

	memResult := memory.ConfigureFromEnv()
	logging.Configure(logging.OptionsFromEnv())
	defer func() { _ = logging.Sync() }()

	startup.LogBanner()
	startup.LogMemoryConfig(memResult)

	// Load configuration
	loader := startup.NewLoader(*configPath)
	config, err := loader.Load()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogConfig(config, loader.Path())

	if err := hooks.ValidateSetup(config.Repository); err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	if err := startup.PrepareQueueDir(config); err != nil {
		startup.LogFatal("Setup error: %v", err)
	}

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(volumeMap(config)))
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	metrics.InitializeMetrics(config.Transform.Enabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repository
	repo, closeRepo, err := filerepo.Open(ctx, config.Repository)
	if err != nil {
		startup.LogFatal("Failed to open repository: %v", err)
	}

	// Encoders
	if !config.Encoder.Disabled("vips") {
		encoder.InitVips()
		defer encoder.ShutdownVips()
	}
	factory := transform.NewFactory(config.Transform, repo, encoder.Chain(config.Encoder),
		transform.WithObserver(metrics.NewTransformObserver()))
	startup.LogEncoderInit(factory)

	// Job queue
	queueStart := time.Now()
	queue, err := jobqueue.Open(ctx, config.Queue.Path)
	if err != nil {
		startup.LogFatal("Failed to open job queue: %v", err)
	}
	requeued, err := queue.Requeue(ctx)
	if err != nil {
		logging.Warn("Failed to requeue interrupted jobs: %v", err)
	}

	monitor := memory.NewMonitor(config.Memory)
	monitor.Start()

	workerCount := workers.Resolve(config.Queue.Workers, 0)
	runner := jobqueue.NewRunner(queue, jobqueue.RunnerOptions{
		Workers:      workerCount,
		PollInterval: config.Queue.PollInterval,
		Gate:         monitor,
	})
	transformHandler := jobs.NewTransformImageHandler(factory, repo, config.Repository.HashLevels)
	runner.Handle(jobs.TypeTransformImage, transformHandler)
	startup.LogQueueInit(time.Since(queueStart), requeued, workerCount)

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		runner.Run(ctx)
	}()
	go pruneLoop(ctx, queue, config.Queue.Retention)

	collector := metrics.NewCollector(queueStatsProvider(context.Background(), queue), 30*time.Second)
	collector.Start()

	// Hooks, reloaded with the config file
	eventHooks := hooks.New(factory, repo, queue, config.Repository.HashLevels, config.Hooks)
	loader.Watch(func(next *startup.Config) {
		eventHooks.SetConfig(next.Transform)
		logging.Info("Hook toggles updated; encoder, repository and server settings apply after a restart")
	})

	// Upload watcher
	watcherDone := make(chan struct{})
	if config.Watch.Enabled && config.Repository.Backend == "local" {
		w := watch.New(config.Repository.Local.Public, config.Repository.HashLevels, eventHooks)
		go func() {
			defer close(watcherDone)
			if err := w.Run(ctx); err != nil {
				logging.Error("Upload watcher stopped: %v", err)
			}
		}()
	} else {
		if config.Watch.Enabled {
			logging.Warn("Upload watcher needs the local repository backend, not %s", config.Repository.Backend)
		}
		close(watcherDone)
	}

	// Initialize handlers
	h := handlers.New(eventHooks, factory, transformHandler, queue)

	// Setup router
	router := mux.NewRouter()
	h.Register(router)
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	startup.LogHTTPRoutes(router, config.Server.LogHealthChecks)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.Server.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	srv := &http.Server{
		Addr:              ":" + config.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Inline transforms can take a while
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.Server.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.Server.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(shutdown{
		cancel:     cancel,
		srv:        srv,
		metricsSrv: metricsSrv,
		collector:  collector,
		monitor:    monitor,
		runner:     runnerDone,
		watcher:    watcherDone,
		queue:      queue,
		closeRepo:  closeRepo,
	})

	h.SetReady(true)
	startup.LogServerStarted(startup.ServerInfo{
		Port:            config.Server.Port,
		MetricsPort:     config.Server.MetricsPort,
		MetricsEnabled:  config.Server.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-shutdownComplete
}

// shutdownComplete is closed once every component has stopped.
var shutdownComplete = make(chan struct{})

type shutdown struct {
	cancel     context.CancelFunc
	srv        *http.Server
	metricsSrv *http.Server
	collector  *metrics.Collector
	monitor    *memory.Monitor
	runner     <-chan struct{}
	watcher    <-chan struct{}
	queue      *jobqueue.Queue
	closeRepo  func() error
}

func handleShutdown(s shutdown) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping job workers")
	s.cancel()
	select {
	case <-s.runner:
		startup.LogShutdownStepComplete("Job workers stopped")
	case <-ctx.Done():
		logging.Warn("Job workers did not stop in time")
	}
	<-s.watcher

	s.collector.Stop()
	s.monitor.Stop()

	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownStep("Closing job queue")
	if err := s.queue.Close(); err != nil {
		logging.Warn("Job queue close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Job queue closed")
	}
	if err := s.closeRepo(); err != nil {
		logging.Warn("Repository close error: %v", err)
	}

	startup.LogShutdownComplete()
}

// pruneLoop deletes finished jobs older than retention once an hour.
func pruneLoop(ctx context.Context, queue *jobqueue.Queue, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := queue.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				logging.Warn("Failed to prune finished jobs: %v", err)
			} else if n > 0 {
				logging.Debug("Pruned %d finished jobs", n)
			}
		}
	}
}
