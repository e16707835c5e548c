package main

import (
	"fmt"
	"os"

	"chainflow-backend/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	logger.Disable()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "eventctl",
		Short:        "Offline tools for chain event schemas",
		SilenceUsage: true,
	}

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a runtime metadata dump into event definitions",
		RunE:  runDecode,
	}
	decodeCmd.Flags().String("registry", "", "runtime metadata JSON file (types + pallets)")
	decodeCmd.Flags().String("pallet", "", "only print events of this pallet")
	decodeCmd.Flags().String("kind", "event", "definition kind: event, error or all")
	_ = decodeCmd.MarkFlagRequired("registry")
	root.AddCommand(decodeCmd)

	formatCmd := &cobra.Command{
		Use:   "format",
		Short: "Format a raw event value the way workflows see it",
		RunE:  runFormat,
	}
	formatCmd.Flags().String("type", "", "original type label, e.g. T::Balance")
	formatCmd.Flags().String("value", "", "raw value")
	formatCmd.Flags().Int("decimals", 10, "token decimals of the chain")
	_ = formatCmd.MarkFlagRequired("type")
	_ = formatCmd.MarkFlagRequired("value")
	root.AddCommand(formatCmd)

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for local API testing",
		RunE:  runToken,
	}
	tokenCmd.Flags().Int64("user-id", 0, "user id")
	tokenCmd.Flags().String("address", "", "wallet address")
	tokenCmd.Flags().String("config", "", "config file path (defaults to CONFIG_FILE or ./config.yaml)")
	_ = tokenCmd.MarkFlagRequired("user-id")
	_ = tokenCmd.MarkFlagRequired("address")
	root.AddCommand(tokenCmd)

	return root
}
