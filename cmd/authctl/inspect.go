package main

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spec-kit/storefront-api/internal/auth"
)

type inspection struct {
	Valid       bool      `json:"valid"`
	Reason      string    `json:"reason,omitempty"`
	ID          string    `json:"jti,omitempty"`
	SubjectID   string    `json:"subjectId,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Role        string    `json:"role,omitempty"`
	IssuedAt    time.Time `json:"issuedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func inspectTokenCmd() *cobra.Command {
	var sealed bool

	cmd := &cobra.Command{
		Use:   "inspect-token <value>",
		Short: "Validate a session token against SESSION_SECRET and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			secret := os.Getenv("SESSION_SECRET")
			if secret == "" {
				return errors.New("SESSION_SECRET is required")
			}

			result, err := inspect(args[0], []byte(secret), sealed, time.Now())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().BoolVar(&sealed, "cookie", false, "value is the sealed cookie rather than the bare token")

	return cmd
}

func inspect(value string, secret []byte, sealed bool, now time.Time) (inspection, error) {
	keys, err := auth.DeriveKeys(secret)
	if err != nil {
		return inspection{}, err
	}

	token := value
	if sealed {
		token, err = encryptcookie.DecryptCookie(value, keys.Cookie)
		if err != nil {
			return inspection{Reason: "cookie seal rejected"}, nil
		}
	}

	claims, err := auth.NewTokenManager(keys.Signing, 0).ParseClaims(token, now)
	if err != nil {
		return inspection{Reason: err.Error()}, nil
	}

	meta := claims.Metadata()
	return inspection{
		Valid:       true,
		ID:          meta.ID,
		SubjectID:   meta.SubjectID,
		DisplayName: claims.DisplayName,
		Role:        meta.Role.String(),
		IssuedAt:    meta.IssuedAt,
		ExpiresAt:   meta.ExpiresAt,
	}, nil
}
