/*
Package workers sizes the job runner's worker pool.

Encoding a rendition is CPU bound, so the runner starts one worker per CPU
available to the process:

	n := workers.ForCPU(8)

The count comes from runtime.GOMAXPROCS, which the Go runtime derives from
the container CPU quota. runtime.NumCPU reports the host CPUs and would
oversubscribe a pod limited to two cores on a large node.

Repository transfers spend most of their time waiting and use ForIO (2 per
CPU). ForMixed (1.5 per CPU) suits work that does both.

# Overrides

queue.workers in the configuration takes precedence through Resolve. When it
is unset, the WEBP_WORKERS environment variable pins the count:

	env:
	- name: WEBP_WORKERS
	  value: "4"

Every function caps its result at the given limit and never returns less
than one. All functions are safe for concurrent use.
*/
package workers
