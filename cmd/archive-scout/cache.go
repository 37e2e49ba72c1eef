package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand(global *globalFlags) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the result cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached result set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			log := newLogger(cfg, cmd.ErrOrStderr())

			store, err := openCache(cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("unable to clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s cache.\n", cfg.CacheBackend)
			return nil
		},
	})

	return cacheCmd
}
