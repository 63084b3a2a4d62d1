package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"media-ingest/internal/mediatypes"
	"media-ingest/internal/startup"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *startup.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag != nil {
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			return path
		}
	}
	return os.Getenv("CONFIG_FILE")
}

// ensureConfig loads configuration once per process. serve loads it itself
// so the startup banner is printed.
func (c *commandContext) ensureConfig() (*startup.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = startup.Load(c.configPath())
	})
	return c.config, c.configErr
}

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "ingestd",
		Short:         "Media library ingest daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default $CONFIG_FILE)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newRecycleCommand(ctx))
	rootCmd.AddCommand(newProbeCommand())
	rootCmd.AddCommand(newTranscodeCommand(ctx))
	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// parseTypeFlag maps a --type value to library types. Empty means all.
func parseTypeFlag(value string) ([]mediatypes.LibraryType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "all":
		return mediatypes.Types, nil
	case "video", "videos":
		return []mediatypes.LibraryType{mediatypes.Video}, nil
	case "image", "images":
		return []mediatypes.LibraryType{mediatypes.Image}, nil
	default:
		return nil, fmt.Errorf("unknown library type %q (want video or image)", value)
	}
}
