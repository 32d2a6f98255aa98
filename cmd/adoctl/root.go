package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string

	// stdout is swapped by tests.
	stdout io.Writer = os.Stdout
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "adoctl",
		Short: "CLI for the adomirror server",
		Long: `adoctl talks to a running adomirror server.

It manages Azure DevOps connections, syncs and lists projects, starts
extraction jobs and follows their progress and logs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("ADOMIRROR_SERVER", "http://localhost:8080"), "adomirror server URL")
	root.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")

	root.AddCommand(newHealthCmd())
	root.AddCommand(newConnectionsCmd())
	root.AddCommand(newProjectsCmd())
	root.AddCommand(newExtractCmd())
	root.AddCommand(newJobsCmd())
	root.AddCommand(newLogsCmd())
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
