package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"media-ingest/internal/transcoder"
)

func newTranscodeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcode <file>",
		Short: "Run a single video through the transcode gate",
		Long: "Probes the file and converts it to MP4 when it does not play as is. " +
			"The original is kept beside the output with a $_ prefix.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ffmpeg := transcoder.NewFFmpeg()
			defer ffmpeg.Cleanup()
			if !ffmpeg.Available() {
				return fmt.Errorf("ffmpeg and ffprobe must be on PATH")
			}

			gate := transcoder.New(ffmpeg, ffmpeg, transcoder.Config{
				Args:    cfg.TranscodeArgs,
				Timeout: cfg.TranscodeTimeout,
			})
			res, err := gate.Transcode(runCtx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Decision: %s\n", res.Decision)
			fmt.Fprintf(out, "Output:   %s\n", res.Path)
			if res.OriginalPath != "" {
				fmt.Fprintf(out, "Original: %s\n", res.OriginalPath)
			}
			return nil
		},
	}
}
