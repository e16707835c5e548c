package main

import (
	"fmt"

	"chainflow-backend/internal/config"
	"chainflow-backend/pkg/utils"

	"github.com/spf13/cobra"
)

func runToken(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetInt64("user-id")
	address, _ := cmd.Flags().GetString("address")
	cfgFile, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return err
	}

	token, err := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessExpiry).GenerateAccessToken(userID, address)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
