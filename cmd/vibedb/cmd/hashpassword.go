package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"vibedb/internal/vault"
)

// hashPasswordCmd hashes a password the way the daemon stores it, for
// seeding a first admin user directly in the catalog.
var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash a password for manual catalog seeding",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := vault.New(cfg.Security.EncryptionKey, cfg.Security.APIKeySalt)
		if err != nil {
			return fmt.Errorf("failed to initialize vault: %w", err)
		}

		fmt.Fprint(os.Stderr, "Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if len(password) == 0 {
			return fmt.Errorf("password must not be empty")
		}

		fmt.Println(v.HashPassword(string(password)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}
