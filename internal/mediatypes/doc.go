// Package mediatypes defines the library types handled by the ingest pipeline
// and the path classifier that routes files to them.
//
// It is a dependency-free foundation imported by every other package, so it
// contains only types, extension tables and pure functions.
//
// # Library Types
//
//	mediatypes.Video // scenes, routed through the transcode gate
//	mediatypes.Image // images
//	mediatypes.None  // not importable
//
// mediatypes.Types lists the importable types in the order a scan cycle
// visits them.
//
// # Classification
//
// Classify applies the routing rules to a path:
//
//	ex := mediatypes.NewExcluder([]string{"*.part", "**/@eaDir/**"})
//	switch mediatypes.Classify("/media/videos/a.mkv", ex) {
//	case mediatypes.Video:
//	    // push to the video queue
//	}
//
// Hidden files and originals parked by the transcode gate (base names starting
// with "$_") are never importable.
package mediatypes
