// Package search maintains the full-text index of catalogued scenes and
// images using bleve.
//
// Import workers call Index after every successful upsert; re-indexing an id
// replaces the previous document, so repeated imports are harmless. Purging
// missing items calls Remove.
package search
