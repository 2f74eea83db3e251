// Package jobqueue persists rendition jobs in SQLite and runs them on a
// worker pool.
//
// Jobs carry a type, JSON parameters and an optional dedup key. While a
// pending job holds a key, pushes with the same key are dropped, so the
// same rendition requested by several events is encoded once:
//
//	q, err := jobqueue.Open(ctx, "/var/lib/webp/queue.db")
//	id, queued, err := q.Push(ctx, jobqueue.Spec{Type: "transformImage", Params: p, DedupKey: key})
//
// A [Runner] claims jobs oldest first and dispatches them by type:
//
//	r := jobqueue.NewRunner(q, jobqueue.RunnerOptions{Workers: workers.ForCPU(8), Gate: monitor})
//	r.Handle("transformImage", handler)
//	r.Run(ctx)
//
// Failed jobs are kept with their error and are not retried.
package jobqueue
