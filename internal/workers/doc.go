/*
Package workers sizes and runs the small worker pools used by background
checks: the missing-file sweep over the catalog and the scene preview
backfill that follows a video scan.

Import queues never use these pools; each library type keeps exactly one
import in flight.

# Sizing

Counts come from GOMAXPROCS so container CPU limits are respected:

	n := workers.ForIO(16) // 2 per CPU, at most 16
	n := workers.ForCPU(4) // 1 per CPU, at most 4

CHECK_WORKERS pins the count (still subject to the cap):

	env:
	- name: CHECK_WORKERS
	  value: "4"

# Running

ForEach feeds a slice to n goroutines and stops early when the context ends:

	err := workers.ForEach(ctx, n, scenes, func(ctx context.Context, s *database.Scene) {
	    // stat s.Path
	})
*/
package workers
