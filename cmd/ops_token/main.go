// Command ops_token prints a signed token for the ops API.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"chatstore/internal/config"
	"chatstore/internal/middleware"

	"github.com/spf13/cobra"
)

func main() {
	config.LoadEnv()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops_token",
		Short: "Mint a bearer token for the ops API",
		Long: `Signs an HS256 token with OPS_JWT_SECRET. The subject is recorded
in the ops log lines of every request made with the token.`,
		Args: cobra.NoArgs,
		RunE: runMint,
	}

	cmd.Flags().StringP("subject", "s", config.GetEnv("OPS_OPERATOR", ""), "operator name recorded in the token")
	cmd.Flags().DurationP("ttl", "t", 24*time.Hour, "token lifetime")

	return cmd
}

func runMint(cmd *cobra.Command, args []string) error {
	subject, err := cmd.Flags().GetString("subject")
	if err != nil {
		return err
	}
	ttl, err := cmd.Flags().GetDuration("ttl")
	if err != nil {
		return err
	}
	if subject == "" {
		return errors.New("--subject (or OPS_OPERATOR) must be set")
	}
	if ttl <= 0 {
		return errors.New("--ttl must be positive")
	}

	secret := config.Load().Server.OpsJWTSecret
	if secret == "" {
		return errors.New("OPS_JWT_SECRET must be set in environment")
	}

	token, err := middleware.MintOpsToken(secret, subject, ttl, time.Now())
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
