// Package importer holds the queue handlers that turn files into catalog
// entities.
//
// Each Import call checks the catalog again, builds the entity, runs
// extraction (and for videos the transcode gate), upserts it and indexes
// it. Errors are returned to the queue, which logs and reports them; a
// failed path is never retried here and is picked up by the next scan.
// A path that turns out to be catalogued already ends without error.
package importer
