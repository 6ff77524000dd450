// Package cmd implements the vibedb operator CLI.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"vibedb/internal/config"
	"vibedb/internal/logger"
)

var (
	// cfgFile is the path to the config file (set via --config flag)
	cfgFile string

	// cfg holds the loaded configuration
	cfg *config.Config

	// log is the logger instance
	log *logger.Logger
)

// configFreeCommands run without a config file; key generation has to work
// before any config exists.
var configFreeCommands = map[string]struct{}{
	"version":  {},
	"keygen":   {},
	"config":   {},
	"generate": {},
	"help":     {},
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vibedb",
	Short: "vibedb is the operator CLI for the vibedbd control plane",
	Long: `vibedb manages the vibedbd catalog from the command line: generating
security material, running catalog migrations, and inspecting configuration.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		applyEnvOverrides(cmd.Flags())

		if _, skip := configFreeCommands[cmd.Name()]; skip {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		log, err = logger.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Close()
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches /etc/vibedb, $HOME/.config/vibedb, .)")
}

// applyEnvOverrides lets VIBEDB_<FLAG> environment variables stand in for
// flags that were not set on the command line.
func applyEnvOverrides(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}
		env := "VIBEDB_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if value, ok := os.LookupEnv(env); ok {
			_ = flags.Set(f.Name, value)
		}
	})
}
