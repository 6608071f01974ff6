package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "certctl",
		Short:   "Certistage - certificate rendering and delivery",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if os.Getenv("ENV") != "production" {
				_ = godotenv.Load()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
