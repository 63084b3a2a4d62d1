// Package ingest admits discovered paths into the import queues.
//
// Admission classifies the path, asks the DedupGate whether it is already
// catalogued, and pushes it to the queue of its library type. The gate is
// a check before enqueue, not a lock: two producers can both pass it for
// the same new path. The queue refuses a path that is already pending or
// in flight, and importers check the catalog again before persisting, so
// such races end as a skipped duplicate rather than a second entity.
package ingest
