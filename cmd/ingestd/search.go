package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"media-ingest/internal/mediatypes"
	"media-ingest/internal/search"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var typeFlag string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the search index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseTypeFlag(typeFlag)
			if err != nil {
				return err
			}
			var t mediatypes.LibraryType
			if len(types) == 1 {
				t = types[0]
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			index, err := search.Open(cfg.IndexPath)
			if err != nil {
				return fmt.Errorf("%w (is the daemon running? the index is locked while it is)", err)
			}
			defer index.Close()

			hits, err := index.Search(cmd.Context(), strings.Join(args, " "), t, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintln(out, "No matches")
				return nil
			}
			fmt.Fprintln(out, renderHits(hits, isTerminal(out)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Restrict to video or image")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	return cmd
}

func renderHits(hits []search.Hit, styled bool) string {
	headers := []string{"Type", "Name", "Path", "Score"}
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, []string{h.Type, h.Name, h.Path, strconv.FormatFloat(h.Score, 'f', 3, 64)})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}, styled)
}
