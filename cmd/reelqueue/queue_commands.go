package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelqueue/internal/queue"
	"reelqueue/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the processing queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueSetCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueSyncCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show item counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				stats, err := access.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, stats)
				}
				rows := make([][]string, 0, len(stats)+1)
				total := 0
				for _, status := range queue.AllStatuses() {
					count := stats[string(status)]
					total += count
					rows = append(rows, []string{status.Label(), strconv.Itoa(count)})
				}
				rows = append(rows, []string{"TOTAL", strconv.Itoa(total)})
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}, ""))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print counts as JSON")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		page     int
		perPage  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				result, err := access.List(cmd.Context(), queueaccess.ListOptions{
					Statuses: statuses,
					Page:     page,
					PerPage:  perPage,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if result.Total == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				if len(result.Items) == 0 {
					fmt.Fprintf(out, "Page %d is past the end (%d pages)\n", result.Page, result.Pages())
					return nil
				}
				caption := fmt.Sprintf("Page %d of %d (%d items)", result.Page, result.Pages(), result.Total)
				fmt.Fprint(out, renderTable(
					[]string{"ID", "External ID", "Title", "Status", "Retries", "Updated", "Message"},
					buildQueueListRows(result.Items),
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
					caption,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by queue status (repeatable)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&perPage, "per-page", 50, "Items per page")
	return cmd
}

func buildQueueListRows(items []*queue.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			strconv.FormatInt(item.ExternalID, 10),
			orDash(snip(item.Title, 40)),
			item.Status.Label(),
			strconv.Itoa(item.Retries),
			formatTimestamp(item.UpdatedAt),
			orDash(snip(item.Message, messageWidth)),
		})
	}
	return rows
}

func newQueueSetCommand(ctx *commandContext) *cobra.Command {
	var (
		all      bool
		external bool
		message  string
	)

	cmd := &cobra.Command{
		Use:   "set STATUS [ids...]",
		Short: "Force items into a status with a fresh retry budget",
		Long: "Force items into STATUS. Retries reset to zero and the message is replaced.\n" +
			"Ids are queue item ids, or TMDB ids with --external. Use --all for every item.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, ok := queue.ParseStatus(args[0])
			if !ok {
				return fmt.Errorf("%w: %q (valid: %s)", queue.ErrInvalidStatus, args[0], statusNames())
			}
			ids, err := parsePositiveIDs(args[1:])
			if err != nil {
				return err
			}
			switch {
			case all && len(ids) > 0:
				return errors.New("specify ids or --all, not both")
			case all && external:
				return errors.New("--external requires ids")
			case !all && len(ids) == 0:
				return errors.New("specify at least one id, or --all")
			}

			return ctx.withAccess(func(access queueaccess.Access) error {
				out := cmd.OutOrStdout()
				if external {
					resolved, missing, err := access.ResolveExternal(cmd.Context(), ids)
					if err != nil {
						return err
					}
					for _, id := range missing {
						fmt.Fprintf(cmd.ErrOrStderr(), "External id %d is not queued\n", id)
					}
					if len(resolved) == 0 {
						return errors.New("no queued items match the given external ids")
					}
					ids = resolved
				}
				updated, err := access.ForceStatus(cmd.Context(), string(status), message, ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Set %d items to %s\n", updated, status.Label())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Apply to every queue item")
	cmd.Flags().BoolVar(&external, "external", false, "Treat ids as TMDB ids")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message stored on the items (cleared when empty)")
	return cmd
}

func statusNames() string {
	names := make([]string, 0, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [ids...]",
		Short: "Move failed items back to refresh_data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access queueaccess.Access) error {
				updated, err := access.Retry(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if updated == 0 {
					fmt.Fprintln(out, "No failed items to retry")
					return nil
				}
				fmt.Fprintf(out, "Reset %d failed items for retry\n", updated)
				return nil
			})
		},
	}
}

func newQueueSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Queue stored movies that have no queue item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				created, err := access.Sync(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d missing movies\n", created)
				return nil
			})
		},
	}
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one queue item and its catalog record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access queueaccess.Access) error {
				detail, err := access.Describe(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if detail == nil {
					return fmt.Errorf("queue item %d not found", ids[0])
				}
				if asJSON {
					return writeJSON(cmd, detail)
				}
				printDetail(cmd, detail)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the item as JSON")
	return cmd
}

func printDetail(cmd *cobra.Command, detail *queueaccess.Detail) {
	out := cmd.OutOrStdout()
	item := detail.Item
	fmt.Fprintf(out, "ID: %d\n", item.ID)
	fmt.Fprintf(out, "External ID: %d\n", item.ExternalID)
	fmt.Fprintf(out, "Title: %s\n", orDash(item.Title))
	fmt.Fprintf(out, "Status: %s\n", item.Status.Label())
	fmt.Fprintf(out, "Retries: %d\n", item.Retries)
	fmt.Fprintf(out, "Message: %s\n", orDash(item.Message))
	fmt.Fprintf(out, "Created: %s\n", formatTimestamp(item.CreatedAt))
	fmt.Fprintf(out, "Updated: %s\n", formatTimestamp(item.UpdatedAt))
	switch {
	case item.Claimed(time.Now()):
		fmt.Fprintf(out, "Lease: held until %s\n", formatTimestamp(*item.ClaimedUntil))
	case item.ClaimedUntil != nil:
		fmt.Fprintf(out, "Lease: expired at %s\n", formatTimestamp(*item.ClaimedUntil))
	default:
		fmt.Fprintln(out, "Lease: none")
	}
	if item.Description != "" {
		fmt.Fprintf(out, "Description:\n  %s\n", item.Description)
	}
	movie := detail.Movie
	if movie == nil {
		fmt.Fprintln(out, "Catalog record: none")
		return
	}
	fmt.Fprintln(out, "Catalog record:")
	fmt.Fprintf(out, "  Release date: %s\n", orDash(movie.ReleaseDate))
	fmt.Fprintf(out, "  Runtime: %d min\n", movie.Runtime)
	fmt.Fprintf(out, "  Rating: %.1f (%d votes)\n", movie.VoteAverage, movie.VoteCount)
	fmt.Fprintf(out, "  Genres: %s\n", orDash(strings.Join(movie.Genres, ", ")))
	fmt.Fprintf(out, "  Languages: %s\n", orDash(strings.Join(movie.SpokenLanguages, ", ")))
	if len(movie.Cast) > 0 {
		fmt.Fprintf(out, "  Cast: %s\n", strings.Join(movie.Cast, ", "))
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check queue database health (schema, integrity, lifecycle counts)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				db, dbErr := access.DatabaseHealth(cmd.Context())
				if dbErr != nil && db.Error == "" {
					db.Error = dbErr.Error()
				}
				summary, err := access.Health(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"database": db, "queue": summary})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", db.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(db.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(db.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %s\n", db.SchemaVersion)
				fmt.Fprintf(out, "queue_items table present: %s\n", yesNo(db.TableExists))
				if len(db.MissingColumns) > 0 {
					missing := append([]string(nil), db.MissingColumns...)
					sort.Strings(missing)
					fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
				} else {
					fmt.Fprintln(out, "Missing columns: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(db.IntegrityCheck))
				if db.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", db.Error)
				}
				fmt.Fprint(out, renderTable(
					[]string{"Total", "Pending", "Claimed", "Soft failed", "Completed", "Failed"},
					[][]string{{
						strconv.Itoa(summary.Total),
						strconv.Itoa(summary.Pending),
						strconv.Itoa(summary.Claimed),
						strconv.Itoa(summary.SoftFailed),
						strconv.Itoa(summary.Completed),
						strconv.Itoa(summary.Failed),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
					"",
				))
				return dbErr
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print health as JSON")
	return cmd
}
