// Package logging provides the leveled logging interface used across the
// rendition service and the webpctl maintenance tool.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true. Lines are written to stderr through zap.
// Setting LOG_FILE adds a JSON log file rotated by lumberjack
// (LOG_MAX_SIZE_MB, LOG_MAX_BACKUPS, LOG_MAX_AGE_DAYS, LOG_COMPRESS).
package logging
