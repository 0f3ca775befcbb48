package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/config"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/middleware"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	tokenUserID   string
	tokenUsername string
	tokenRole     string
	tokenTTL      time.Duration
)

// Users live in the upstream identity provider; this mints tokens for
// operators of a standalone install and for local testing.
var tokenCmd = &cobra.Command{
	Use:     "token",
	Short:   "Sign an access token with JWT_SECRET",
	Example: `  parkpos token --username ana --role supervisor --ttl 12h`,
	Args:    cobra.NoArgs,
	RunE:    runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user-id", "", "User ID (defaults to a random UUID)")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "", "Username (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", model.RoleOperator, "operator | supervisor | admin")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 8*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("username")

	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if !slices.Contains(model.AllRoles, tokenRole) {
		return fmt.Errorf("unknown role %q", tokenRole)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if tokenUserID == "" {
		tokenUserID = uuid.NewString()
	}
	tok, err := middleware.SignToken(cfg.JWTSecret, tokenUserID, tokenUsername, tokenRole, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
