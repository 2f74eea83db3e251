package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(formats []string) {
	// --- Transforms (per format × kind × outcome) ---
	for _, format := range formats {
		for _, kind := range []string{"full", "thumb"} {
			for _, outcome := range []string{"ok", "already_exists", "failed"} {
				TransformsTotal.WithLabelValues(format, kind, outcome)
			}
			TransformDuration.WithLabelValues(format, kind)
		}
		for _, backend := range []string{"cli", "vips", "software"} {
			for _, outcome := range []string{"success", "unavailable", "error"} {
				BackendAttemptsTotal.WithLabelValues(format, backend, outcome)
			}
		}
	}

	// --- Jobs ---
	for _, outcome := range []string{"success", "error"} {
		JobsTotal.WithLabelValues("transformImage", outcome)
	}
	JobDuration.WithLabelValues("transformImage")
	for _, status := range []string{"pending", "running", "done", "failed"} {
		QueueDepth.WithLabelValues(status)
	}

	// --- Hook events ---
	for _, event := range []string{"upload", "undelete", "thumbnail", "delete", "move", "purge-thumbnails", "sources"} {
		for _, status := range []string{"ok", "error"} {
			HookEventsTotal.WithLabelValues(event, status)
		}
	}

	// --- Filesystem operation metrics (per volume × operation) ---
	volumes := []string{"public", "thumb", "queue", "unknown"}
	fsOps := []string{"stat", "open", "readdir", "rename"}

	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
