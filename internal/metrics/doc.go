// Package metrics provides Prometheus instrumentation for webp-renditions.
//
// All metrics are prefixed with "webp_renditions_" and registered on the
// default registry through promauto. They are served by promhttp on the
// separate metrics port.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: requests by method, path template and status
//   - HTTPRequestDuration: request duration by method and path template
//   - HTTPRequestsInFlight: requests currently being processed
//
// ## Transform Metrics
//
//   - TransformsTotal: transforms by format, kind ("full", "thumb") and outcome
//   - TransformDuration: transform duration by format and kind
//   - BackendAttemptsTotal: encoder backend attempts by format, backend and outcome
//
// ## Job Queue Metrics
//
//   - JobsTotal, JobDuration: executed jobs by type and outcome
//   - JobsEnqueuedTotal: pushed jobs, split by whether they were deduplicated
//   - QueueDepth: jobs by status, refreshed by the Collector
//   - WorkersBusy: workers currently running a job
//
// ## Event Metrics
//
//   - HookEventsTotal: handled lifecycle events
//   - WatcherEventsTotal, WatcherErrors, WatchedDirectories: upload watcher
//
// ## Filesystem Metrics
//
// Recorded through NewFilesystemObserver for the local repository adapter,
// labelled by volume ("public", "thumb", "queue"):
//   - FilesystemOperationDuration, FilesystemOperationErrors
//   - FilesystemRetryAttempts, FilesystemRetrySuccess, FilesystemRetryFailures
//   - FilesystemRetryDuration, FilesystemStaleErrors
//
// ## Memory Metrics
//
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses
//
// # Usage
//
//	factory := transform.NewFactory(cfg, repo, chain,
//	    transform.WithObserver(metrics.NewTransformObserver()))
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
//	metrics.InitializeMetrics(factory.Keys())
package metrics
