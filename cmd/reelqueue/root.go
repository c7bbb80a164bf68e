package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configPath, logLevel string
	ctx := newCommandContext(&configPath, &logLevel)

	root := &cobra.Command{
		Use:   "reelqueue",
		Short: "Movie catalog processing queue",
		Long: "reelqueue keeps a local catalog of TMDB movies moving through\n" +
			"refresh_data, preprocess_description and create_embedding, and answers\n" +
			"semantic searches over the resulting vector index.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Configuration file path")
	flags.StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	for _, sub := range []func(*commandContext) *cobra.Command{
		newQueueCommand,
		newPopulateCommand,
		newRunCommand,
		newSearchCommand,
		newConfigCommand,
	} {
		root.AddCommand(sub(ctx))
	}
	return root
}
