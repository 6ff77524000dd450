package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

// keygenCmd generates the security material the daemon refuses to start
// without. Output is meant to be pasted into config.yaml or exported as
// VIBEDB_SECURITY_* environment variables.
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an encryption key and API-key salt",
	Long: `Generate the security.encryption_key and security.api_key_salt values
for a new deployment. Changing the encryption key later makes every stored
credential unreadable, so keep these somewhere safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := randomMaterial(32)
		if err != nil {
			return err
		}
		salt, err := randomMaterial(32)
		if err != nil {
			return err
		}

		fmt.Println("security:")
		fmt.Printf("  encryption_key: %s\n", key)
		fmt.Printf("  api_key_salt: %s\n", salt)
		return nil
	},
}

func randomMaterial(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
