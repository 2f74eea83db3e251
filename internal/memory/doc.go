// Package memory keeps rendition jobs inside the container memory limit.
//
// [ConfigureFromEnv] turns the container limit into a runtime soft limit
// (GOMEMLIMIT). Only part of the limit goes to the Go heap: libvips buffers
// live in C memory and the cwebp and avifenc encoders run as child
// processes. MEMORY_RATIO sets the heap share, default 0.80.
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.75"
//
// [Monitor] samples heap usage and pauses the job runner when it crosses the
// critical mark. Workers call [Monitor.Wait] before claiming a job:
//
//	monitor := memory.NewMonitor(cfg.Memory)
//	monitor.Start()
//	defer monitor.Stop()
//
//	if err := monitor.Wait(ctx); err != nil {
//	    return err
//	}
//
// Pausing stops new jobs only. A job already encoding runs to completion.
package memory
