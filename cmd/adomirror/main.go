// Package main is the adomirror server binary: it serves the HTTP API,
// runs extraction jobs and applies schema migrations.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adomirror/adomirror/pkg/config"
)

var version = "dev"

var (
	configFile string
	envFile    string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "adomirror",
		Short: "Mirror Azure DevOps project metadata into a relational store",
		Long: `adomirror reads projects, work items, repositories, pipelines, test plans
and project metadata from Azure DevOps organizations and keeps a local copy
in postgres, mysql or sqlite.

Extraction runs as background jobs whose progress and logs are served by
the HTTP API.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Env file loaded before the environment is read")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// loadConfig reads the config with cmd's flags taking precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, _, err := loadConfigWatchable(cmd)
	return cfg, err
}

func main() {
	// glog writes to stderr only.
	_ = flag.Set("logtostderr", "true")

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
