// Package queue implements the per-library-type import queue.
//
// Each ImportQueue has exactly one dispatcher goroutine, so tasks run one
// at a time in the order they were pushed. A path is refused while it is
// already pending or in flight. Drain listeners fire once for every
// transition from non-empty to empty; error listeners fire once per failed
// task and never stop the queue.
package queue
