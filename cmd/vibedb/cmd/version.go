package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vibedb/internal/version"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of vibedb.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vibedb version %s\n", version.Version)
		fmt.Printf("  commit:  %s\n", version.Commit)
		fmt.Printf("  built:   %s\n", version.Date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
