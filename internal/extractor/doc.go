// Package extractor matches file paths against catalogued scenes, actors
// and labels.
//
// Names and paths are compared after normalization: accents stripped,
// case folded, punctuation collapsed to single spaces. A name matches only
// on whole words, so "Ann" matches "ann smith beach.mp4" but not
// "annual report.mp4".
package extractor
