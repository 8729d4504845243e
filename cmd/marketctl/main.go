/*
Package main is the entry point for marketctl, the operator and terminal
client for the marketplace assistant.

Usage:

	marketctl [command]

Available Commands:

	migrate     Apply or roll back database migrations
	cache       Manage cached chat answers
	ask         Ask the marketplace assistant a question
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"marketplace-assistant/internal/cli"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "marketctl",
		Short:         "Marketplace assistant operator tool",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(cli.NewMigrateCmd())
	rootCmd.AddCommand(cli.NewCacheCmd())
	rootCmd.AddCommand(cli.NewAskCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
