package transcoder

import (
	"path/filepath"
	"strings"
)

// Decision is the outcome of checking a probe against the playback policy.
type Decision int

const (
	// Pass means the file already plays as is.
	Pass Decision = iota
	// TranscodeRequired means the file must be converted before import.
	TranscodeRequired
)

func (d Decision) String() string {
	if d == Pass {
		return "pass"
	}
	return "transcode"
}

// compatibleContainers maps an extension to the ffprobe demuxer name the
// file must report.
var compatibleContainers = map[string]string{
	"mp4":  "mp4",
	"m4v":  "mp4",
	"webm": "webm",
	"ogv":  "ogg",
	"ogg":  "ogg",
}

var compatibleVideoCodecs = map[string]bool{
	"h264":   true,
	"vp8":    true,
	"vp9":    true,
	"av1":    true,
	"theora": true,
}

var compatibleAudioCodecs = map[string]bool{
	"aac":    true,
	"mp3":    true,
	"opus":   true,
	"vorbis": true,
	"flac":   true,
}

// Decide checks the container of path and the codecs in probe. The
// extension must be allowed and, when the probe names its format, the
// format must match the extension. A file without a video stream, or with
// any audio stream outside the allow-list, needs transcoding.
func Decide(path string, probe *ProbeResult) Decision {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	demuxer, ok := compatibleContainers[ext]
	if !ok || probe == nil {
		return TranscodeRequired
	}
	if probe.FormatName != "" && !hasFormat(probe.FormatName, demuxer) {
		return TranscodeRequired
	}

	video := probe.VideoStream()
	if video == nil || !compatibleVideoCodecs[strings.ToLower(video.CodecName)] {
		return TranscodeRequired
	}

	for _, codec := range probe.AudioCodecs() {
		if !compatibleAudioCodecs[strings.ToLower(codec)] {
			return TranscodeRequired
		}
	}
	return Pass
}

// hasFormat reports whether the comma separated ffprobe format list
// contains name.
func hasFormat(formats, name string) bool {
	for _, f := range strings.Split(formats, ",") {
		if strings.EqualFold(strings.TrimSpace(f), name) {
			return true
		}
	}
	return false
}
