package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"media-ingest/internal/mediatypes"
	"media-ingest/internal/scanner"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var typeFlag string
	var noWait bool
	var readDimensions bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one reconciliation scan and import what it finds",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseTypeFlag(typeFlag)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if readDimensions {
				// No watcher runs here, so its initial scan never completes.
				cfg.ReadDimensionsBeforeInitialScan = true
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := openServices(runCtx, cfg)
			if err != nil {
				return err
			}
			defer closeServices(svc)

			results, err := runScan(runCtx, svc, types, !noWait)
			out := cmd.OutOrStdout()
			if len(results) > 0 {
				fmt.Fprintln(out, renderScanResults(results, isTerminal(out)))
			}
			if err != nil {
				return err
			}
			return printCatalogSummary(runCtx, out, svc)
		},
	}

	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Library type to scan: video or image (default both)")
	cmd.Flags().BoolVar(&readDimensions, "read-dimensions", false, "Read image dimensions and hashes during this scan")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return after admission without waiting for imports")
	return cmd
}

// runScan scans types and, when wait is set, blocks until their queues
// drain. A full cycle also runs previews and the missing-file check.
func runScan(ctx context.Context, svc *services, types []mediatypes.LibraryType, wait bool) ([]scanner.Result, error) {
	var results []scanner.Result
	if len(types) == len(mediatypes.Types) {
		res, err := svc.coordinator.Cycle(ctx)
		if err != nil {
			return res, err
		}
		results = res
	} else {
		for _, t := range types {
			res, err := svc.coordinator.Scan(ctx, t)
			results = append(results, res)
			if err != nil {
				return results, err
			}
		}
	}

	if !wait {
		return results, nil
	}
	for _, t := range types {
		if err := svc.coordinator.Wait(ctx, t); err != nil {
			return results, fmt.Errorf("wait for %s imports: %w", t, err)
		}
	}
	return results, nil
}

func renderScanResults(results []scanner.Result, styled bool) string {
	headers := []string{"Type", "Folders", "Files", "Admitted", "Duplicates", "Errors", "Recovered", "Duration"}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Type.String(),
			humanize.Comma(int64(r.Folders)),
			humanize.Comma(int64(r.Files)),
			humanize.Comma(int64(r.Admitted)),
			humanize.Comma(int64(r.Duplicates)),
			strconv.Itoa(r.Errors + r.RootErrors),
			strconv.Itoa(r.Recovered),
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	return renderTable(headers, rows, aligns, styled)
}

func printCatalogSummary(ctx context.Context, out io.Writer, svc *services) error {
	stats, err := svc.CollectStats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Catalog: %s scenes, %s images, %s actors, %s labels, %s missing (%s search documents)\n",
		humanize.Comma(int64(stats.Scenes)),
		humanize.Comma(int64(stats.Images)),
		humanize.Comma(int64(stats.Actors)),
		humanize.Comma(int64(stats.Labels)),
		humanize.Comma(int64(stats.Missing)),
		humanize.Comma(int64(stats.SearchDocuments)),
	)
	return nil
}
