package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/storefront-api/internal/config"
)

func genSecretCmd() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "gen-secret",
		Short: "Print a random value suitable for SESSION_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := generateSecret(size)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}

	cmd.Flags().IntVarP(&size, "bytes", "n", 48, "random bytes before encoding")

	return cmd
}

// generateSecret returns size random bytes, base64url encoded. The encoded
// form is what the server measures against the minimum length.
func generateSecret(size int) (string, error) {
	if size < config.MinSessionSecretBytes {
		return "", fmt.Errorf("secret must be at least %d bytes", config.MinSessionSecretBytes)
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
