package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"reelqueue/internal/importer"
)

func newPopulateCommand(ctx *commandContext) *cobra.Command {
	var (
		sourceURL string
		resume    bool
	)

	cmd := &cobra.Command{
		Use:   "populate-db",
		Short: "Bulk-import a TMDB id export into the queue",
		Long: "Download a TMDB daily id export (or read a local file) and queue every id at refresh_data.\n" +
			"Progress is checkpointed; an interrupted import continues with --resume, which picks the\n" +
			"most recent incomplete import, or the one for --url when both flags are given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceURL = strings.TrimSpace(sourceURL)
			if sourceURL == "" && !resume {
				return errors.New("specify --url or --resume")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger("")
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			im, err := importer.NewFromConfig(cfg, store, logger, nil)
			if err != nil {
				return err
			}

			var result importer.Result
			if resume {
				result, err = im.Resume(cmd.Context(), sourceURL)
			} else {
				result, err = im.Import(cmd.Context(), sourceURL)
			}
			out := cmd.OutOrStdout()
			switch {
			case errors.Is(err, importer.ErrNothingToResume):
				fmt.Fprintln(out, "No incomplete import to resume")
				return nil
			case errors.Is(err, context.Canceled):
				printImportResult(out, result)
				fmt.Fprintf(cmd.ErrOrStderr(), "Import interrupted; progress saved. Continue with `reelqueue populate-db --resume --url %s`.\n", result.SourceURL)
				return err
			case err != nil:
				return err
			}
			printImportResult(out, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceURL, "url", "", "Export URL, file:// URL, or local path (.gz accepted)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue an incomplete import instead of starting over")
	return cmd
}

func printImportResult(out io.Writer, result importer.Result) {
	if result.SourceURL != "" {
		fmt.Fprintf(out, "Source: %s\n", result.SourceURL)
	}
	if result.Resumed {
		fmt.Fprintln(out, "Resumed from the saved position")
	}
	fmt.Fprintf(out, "Lines read: %d\n", result.Lines)
	fmt.Fprintf(out, "Imported: %d\n", result.Imported)
	fmt.Fprintf(out, "Already queued: %d\n", result.Existing)
	fmt.Fprintf(out, "Skipped: %d\n", result.Skipped)
	if c := result.Cursor; c != nil {
		fmt.Fprintf(out, "Position: line %d\n", c.LineNumber)
		if c.Complete() {
			fmt.Fprintln(out, "Import complete")
		}
	}
}
