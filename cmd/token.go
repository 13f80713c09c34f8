package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"roomsync/internal/auth"
)

var tokenOperator string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator token for the serve API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret (or JWT_SECRET) is not set")
		}
		auth.SetSecret(cfg.Auth.JWTSecret)

		token, err := auth.GenerateToken(tokenOperator)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOperator, "operator", "", "operator name embedded in the token")
	_ = tokenCmd.MarkFlagRequired("operator")
}
