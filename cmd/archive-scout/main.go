package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	verbose  bool
	logLevel string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "archive-scout",
		Short:         "Search archive.org for books and download the files you pick",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(flags)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "show verbose logs")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "tui",
			Short: "Open the interactive terminal UI (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runTUI(flags)
			},
		},
		newSearchCommand(flags),
		newHistoryCommand(),
		newCacheCommand(flags),
	)

	return rootCmd
}
