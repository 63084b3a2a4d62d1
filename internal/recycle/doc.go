// Package recycle tracks catalog entities whose backing files have gone
// missing.
//
// CheckMissing finds them, Purge deletes them from the catalog and the
// search index, and Reset forgets them without deleting anything. Reset is
// meant for removable or network volumes that were offline during a check.
package recycle
