package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "plate-cli",
		Short: "Send images and videos to the plate detection service",
		Long: `plate-cli uploads a file to the license plate detection service and
saves the processed result next to it.

Images go to /detect-image/, everything else to /detect-video/.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		detectCmd(),
		kindCmd(),
	)

	return root
}
