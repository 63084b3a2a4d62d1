package mediatypes

import (
	"fmt"
	"strings"
)

// LibraryType identifies which import pipeline a file belongs to.
// The zero value, None, means the file is not importable.
type LibraryType int

const (
	// None marks a path that no pipeline accepts.
	None LibraryType = iota
	// Video files become scenes and pass through the transcode gate.
	Video
	// Image files become images.
	Image
)

// Types lists every importable library type in scan-cycle order.
var Types = []LibraryType{Video, Image}

// String returns the lowercase name used in logs, metrics labels and config.
func (t LibraryType) String() string {
	switch t {
	case None:
		return "none"
	case Video:
		return "video"
	case Image:
		return "image"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ParseLibraryType accepts "video", "videos", "image", "images" in any case.
func ParseLibraryType(s string) (LibraryType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video", "videos", "scene", "scenes":
		return Video, nil
	case "image", "images":
		return Image, nil
	default:
		return None, fmt.Errorf("unknown library type %q", s)
	}
}

// VideoExtensions maps file extensions to whether they are importable videos.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".webm": true,
	".ogv":  true,
	".mov":  true,
	".mkv":  true,
	".avi":  true,
	".wmv":  true,
	".flv":  true,
	".3gp":  true,
	".mpeg": true,
	".mpg":  true,
	".ts":   true,
}

// ImageExtensions maps file extensions to whether they are importable images.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",

	// Videos
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".webm": "video/webm",
	".ogv":  "video/ogg",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
}

// TypeForExtension returns the library type for a lowercase extension
// including the leading dot. Video wins when an extension is in both sets.
func TypeForExtension(ext string) LibraryType {
	if VideoExtensions[ext] {
		return Video
	}
	if ImageExtensions[ext] {
		return Image
	}
	return None
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
