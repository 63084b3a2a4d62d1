package transcoder

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Stream is one stream reported by ffprobe.
type Stream struct {
	Index        int    `json:"index"`
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	AvgFrameRate string `json:"avg_frame_rate,omitempty"`
}

// ProbeResult is the container and stream information of a media file.
type ProbeResult struct {
	FormatName string   `json:"formatName"`
	Duration   float64  `json:"duration"`
	Size       int64    `json:"size"`
	Streams    []Stream `json:"streams"`
}

type ffprobeOutput struct {
	Streams []Stream `json:"streams"`
	Format  struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
	} `json:"format"`
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid ffprobe output: %w", err)
	}

	res := &ProbeResult{
		FormatName: out.Format.FormatName,
		Streams:    out.Streams,
	}
	// ffprobe reports numbers in the format section as strings.
	if out.Format.Duration != "" {
		res.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	}
	if out.Format.Size != "" {
		res.Size, _ = strconv.ParseInt(out.Format.Size, 10, 64)
	}
	return res, nil
}

// VideoStream returns the first video stream, or nil.
func (p *ProbeResult) VideoStream() *Stream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "video" {
			return &p.Streams[i]
		}
	}
	return nil
}

// AudioCodecs lists the codec of every audio stream.
func (p *ProbeResult) AudioCodecs() []string {
	var codecs []string
	for _, s := range p.Streams {
		if s.CodecType == "audio" {
			codecs = append(codecs, s.CodecName)
		}
	}
	return codecs
}

// FPS parses the average frame rate of the video stream ("30000/1001").
func (p *ProbeResult) FPS() float64 {
	v := p.VideoStream()
	if v == nil || v.AvgFrameRate == "" {
		return 0
	}

	num, den, found := strings.Cut(v.AvgFrameRate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
