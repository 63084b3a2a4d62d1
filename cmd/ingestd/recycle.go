package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"media-ingest/internal/database"
	"media-ingest/internal/recycle"
)

func newRecycleCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recycle",
		Short: "Inspect and purge catalog entries whose files are gone",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tracked missing items, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd.Context(), ctx, func(tracker *recycle.Tracker) error {
				items, err := tracker.Items(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No missing items")
					return nil
				}
				fmt.Fprintln(out, renderMissingItems(items, time.Now(), isTerminal(out)))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Stat every catalogued file and track the ones that are gone",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd.Context(), ctx, func(tracker *recycle.Tracker) error {
				res, err := tracker.CheckMissing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Checked %s files in %v: %d missing, %d restored, %d errors\n",
					humanize.Comma(int64(res.Checked)), res.Duration.Round(time.Millisecond),
					res.Missing, res.Restored, res.Errors)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Remove tracked missing items from the catalog and search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd.Context(), ctx, func(tracker *recycle.Tracker) error {
				n, err := tracker.Purge(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d items\n", n)
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget every tracked missing item without purging",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd.Context(), ctx, func(tracker *recycle.Tracker) error {
				n, err := tracker.Reset(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d items\n", n)
				return err
			})
		},
	})

	return cmd
}

func withTracker(parent context.Context, ctx *commandContext, fn func(*recycle.Tracker) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	svc, err := openServices(parent, cfg)
	if err != nil {
		return err
	}
	defer closeServices(svc)
	return fn(svc.coordinator.Tracker())
}

func renderMissingItems(items []*database.MissingItem, now time.Time, styled bool) string {
	headers := []string{"Type", "ID", "Path", "Detected"}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.Type,
			item.ID,
			item.Path,
			humanize.RelTime(item.DetectedAt, now, "ago", "from now"),
		})
	}
	return renderTable(headers, rows, nil, styled)
}
