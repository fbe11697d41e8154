package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the storage schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := migrateStorage(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		logger.Info("storage.migrated", "driver", cfg.Storage.Driver, "version", version)
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
		return nil
	},
}
