// Package scanner reconciles the catalog with the library folders.
//
// A Scanner walks the roots of one library type depth first and feeds each
// file to the same admission path the watcher uses, so files missed by
// the watcher are still imported. The Scheduler runs a cycle (videos, then
// images) at startup and again a fixed interval after each cycle ends.
package scanner
