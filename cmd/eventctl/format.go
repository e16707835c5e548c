package main

import (
	"fmt"

	"chainflow-backend/pkg/utils"

	"github.com/spf13/cobra"
)

func runFormat(cmd *cobra.Command, _ []string) error {
	typeLabel, _ := cmd.Flags().GetString("type")
	value, _ := cmd.Flags().GetString("value")
	decimals, _ := cmd.Flags().GetInt("decimals")

	if decimals < 0 {
		return fmt.Errorf("decimals must not be negative")
	}

	_, err := fmt.Fprintln(cmd.OutOrStdout(), utils.FormatValue(typeLabel, value, decimals))
	return err
}
