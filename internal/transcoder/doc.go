// Package transcoder decides whether a video plays in a browser as is and
// converts it with FFmpeg when it does not.
//
// The Gate runs probe, decide, encode, verify and commit in that order. A
// converted file is written under a hidden ".partial" name and only moved
// to the canonical "<base>.mp4" path after verification, with the original
// kept under a "$_" prefixed name. Recover reconciles a "$_" file left
// behind by a crash between the two renames.
//
// FFmpeg and ffprobe must be installed and available in the system PATH.
package transcoder
