// Command webp-renditions is the rendition server. It receives file
// lifecycle events from the wiki over HTTP, keeps WebP and AVIF renditions of
// uploads in step with their sources, and answers picture-source queries.
//
// # Application Lifecycle
//
//  1. Memory configuration: GOMEMLIMIT from the environment or the cgroup
//     limit.
//  2. Configuration: YAML file (--config or WEBP_CONFIG) overlaid with
//     WEBP_* environment variables.
//  3. Repository: local, S3, GCS or SFTP adapter.
//  4. Encoders: cwebp/avifenc, libvips and the pure Go software backend.
//  5. Job queue: SQLite file, interrupted jobs are requeued.
//  6. Workers: the job runner, gated by the memory monitor.
//  7. HTTP: event, source, transform and health endpoints, plus Prometheus
//     metrics on a separate port.
//  8. Upload watcher (optional, local repository only).
//
// # Graceful Shutdown
//
// SIGINT and SIGTERM stop the HTTP server first, then the job workers (a
// running job completes), the watcher, the metrics collector and finally
// the queue and repository. Every step shares a 30 second deadline.
//
// # Build Requirements
//
// CGO is required for SQLite, libvips and libwebp:
//
//	go build -o webp-renditions .
//	go build -o webpctl ./cmd/webpctl
package main
