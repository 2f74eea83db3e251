// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] reads an optional YAML file (the path given on the command
// line, or $WEBP_CONFIG) through viper. Every key can be overridden from
// the environment with the WEBP_ prefix and dots replaced by underscores:
//
//	transform.enabled          WEBP_TRANSFORM_ENABLED=webp,avif
//	encoder.webp.quality       WEBP_ENCODER_WEBP_QUALITY=80
//	repository.hash_levels     WEBP_REPOSITORY_HASH_LEVELS=2
//	queue.path                 WEBP_QUEUE_PATH=/var/lib/webp/queue.db
//	server.port                WEBP_SERVER_PORT=8080
//
// Defaults come from the default struct tags of each section and the result
// is checked against the validate tags. [Loader.Watch] re-reads the file when
// it changes.
//
// Memory limits are not part of the file: MEMORY_LIMIT, MEMORY_RATIO and
// GOMEMLIMIT are read by the memory package before configuration loads, and
// WEBP_WORKERS overrides the worker count.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The package provides logging functions for consistent output:
//   - [LogBanner]: Banner, build and system information
//   - [LogConfig]: Effective configuration
//   - [LogMemoryConfig]: Memory limit configuration
//   - [LogEncoderInit]: Backend availability per format
//   - [LogQueueInit]: Job queue recovery and worker count
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
//
// # Example Usage
//
//	startup.LogBanner()
//	loader := startup.NewLoader(*configPath)
//	config, err := loader.Load()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//	startup.LogConfig(config, loader.Path())
//
//	// Start server...
//	startup.LogServerStarted(startup.ServerInfo{
//	    Port:            config.Server.Port,
//	    MetricsPort:     config.Server.MetricsPort,
//	    MetricsEnabled:  config.Server.MetricsEnabled,
//	    StartupDuration: time.Since(startTime),
//	})
package startup
