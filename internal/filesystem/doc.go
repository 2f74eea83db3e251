/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

The local repository adapter stores renditions on shared upload directories
that are commonly NFS mounts. Stat, open, readdir and rename calls against
those mounts go through this package.

# Retry Behavior

Only NFS stale file handle errors (ESTALE) trigger retries. All other errors
fail immediately. Retries use exponential backoff with these defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

# Metrics

Operations are reported to the Observer registered with SetObserver, labelled
by the volume name a VolumeResolver maps the path to ("public", "thumb",
"queue"). With no observer set, nothing is recorded.
*/
package filesystem
