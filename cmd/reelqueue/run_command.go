package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelqueue/internal/daemonrun"
	"reelqueue/internal/queue"
	"reelqueue/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline scheduler in the foreground",
		Long: "Run the discovery job and the three stage jobs on their configured intervals until interrupted.\n" +
			"With --once every job runs a single time in order and the command exits.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !once {
				return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: ctx.logLevel()})
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

			manager, services, err := workflow.NewManagerFromConfig(cfg, store, logger)
			if err != nil {
				return err
			}
			defer services.Close()

			runErr := manager.RunOnce(cmd.Context())
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(queue.AllStatuses()))
			for _, status := range queue.AllStatuses() {
				rows = append(rows, []string{status.Label(), strconv.Itoa(stats[status])})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}, ""))
			changed, unchanged := manager.RefreshCounts()
			fmt.Fprintf(out, "Refreshed records: %d changed, %d unchanged\n", changed, unchanged)
			return runErr
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run every job once and exit")
	return cmd
}
