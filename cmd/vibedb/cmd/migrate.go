package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vibedb/internal/storage/migrate"
)

// migrateCmd applies catalog migrations. The daemon runs these on startup
// too; this exists for pipelines that migrate before deploying.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply catalog schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := migrate.Run(cmd.Context(), cfg.Catalog.URL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Info("catalog migrations applied")
		fmt.Println("Catalog is up to date.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
