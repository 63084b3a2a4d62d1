package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"media-ingest/internal/transcoder"
)

func newProbeCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Show container, streams and the transcode decision for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ffmpeg := transcoder.NewFFmpeg()
			if !ffmpeg.Available() {
				return fmt.Errorf("ffprobe not found on PATH")
			}

			path := args[0]
			probe, err := ffmpeg.Probe(ctx, path)
			if err != nil {
				return err
			}
			decision := transcoder.Decide(path, probe)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Path     string                  `json:"path"`
					Decision string                  `json:"decision"`
					Probe    *transcoder.ProbeResult `json:"probe"`
				}{path, decision.String(), probe})
			}
			printProbe(out, path, probe, decision, isTerminal(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the probe as JSON")
	return cmd
}

func printProbe(out io.Writer, path string, probe *transcoder.ProbeResult, decision transcoder.Decision, styled bool) {
	fmt.Fprintf(out, "File:      %s\n", path)
	fmt.Fprintf(out, "Container: %s\n", probe.FormatName)
	fmt.Fprintf(out, "Duration:  %v\n", (time.Duration(probe.Duration * float64(time.Second))).Round(time.Second))
	fmt.Fprintf(out, "Size:      %s\n", humanize.IBytes(uint64(max(probe.Size, 0))))
	if fps := probe.FPS(); fps > 0 {
		fmt.Fprintf(out, "FPS:       %.3f\n", fps)
	}
	fmt.Fprintf(out, "Decision:  %s\n", decision)

	if len(probe.Streams) == 0 {
		return
	}
	headers := []string{"#", "Type", "Codec", "Resolution", "Frame rate"}
	rows := make([][]string, 0, len(probe.Streams))
	for _, s := range probe.Streams {
		resolution := ""
		if s.Width > 0 && s.Height > 0 {
			resolution = fmt.Sprintf("%dx%d", s.Width, s.Height)
		}
		rows = append(rows, []string{strconv.Itoa(s.Index), s.CodecType, s.CodecName, resolution, s.AvgFrameRate})
	}
	fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignRight}, styled))
}
