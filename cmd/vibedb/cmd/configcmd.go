package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vibedb/internal/config"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the vibedb configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// configGenerateCmd writes a starter config file. The generated file still
// needs catalog.url and the keygen output before the daemon will start.
var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a default config file to the user config directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GenerateConfig(configFormat)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		fmt.Println("Fill in catalog.url and the `vibedb keygen` output, then start vibedbd.")
		return nil
	},
}

func init() {
	configGenerateCmd.Flags().StringVar(&configFormat, "format", "yaml", "config file format (yaml, toml, json)")
	configCmd.AddCommand(configGenerateCmd)
	rootCmd.AddCommand(configCmd)
}
