package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelqueue/internal/workflow"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		limit       int
		maxDistance float64
	)

	cmd := &cobra.Command{
		Use:   `search "text"`,
		Short: "Find the movies whose descriptions are nearest to the query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errors.New("search text is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.Embedding.TopK
			}
			if maxDistance <= 0 {
				maxDistance = cfg.Embedding.MaxDistance
			}

			indexer, index, err := workflow.NewIndexer(cfg)
			if err != nil {
				return err
			}
			defer index.Close()

			matches, err := indexer.Search(cmd.Context(), query, limit, maxDistance)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "No matches")
				return nil
			}
			rows := make([][]string, 0, len(matches))
			for _, match := range matches {
				year := "-"
				if match.Metadata.ReleaseDate > 0 {
					year = strconv.Itoa(match.Metadata.ReleaseDate / 10000)
				}
				rows = append(rows, []string{
					strconv.FormatFloat(match.Distance, 'f', 3, 64),
					strconv.FormatInt(match.ExternalID, 10),
					orDash(snip(match.Metadata.Title, 40)),
					year,
					strconv.FormatFloat(match.Metadata.VoteAverage, 'f', 1, 64),
					orDash(snip(match.Metadata.Genres, 40)),
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Distance", "TMDB ID", "Title", "Year", "Rating", "Genres"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignRight, alignLeft},
				"",
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "k", 0, "Maximum number of matches (default embedding.top_k)")
	cmd.Flags().Float64Var(&maxDistance, "max-distance", 0, "Cosine distance cutoff (default embedding.max_distance)")
	return cmd
}
