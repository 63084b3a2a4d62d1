// Package media reads image metadata and produces scene previews.
//
// ReadImageInfo returns dimensions and a 64-bit difference hash used to
// spot near-duplicate images. PreviewGenerator grabs a frame with FFmpeg
// and shrinks it with libvips when InitVips has run, or with the pure Go
// imaging package otherwise.
package media
