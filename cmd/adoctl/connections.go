package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newConnectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connections",
		Aliases: []string{"conn"},
		Short:   "Manage Azure DevOps connections",
	}
	cmd.AddCommand(newConnectionsListCmd())
	cmd.AddCommand(newConnectionsAddCmd())
	cmd.AddCommand(newConnectionsTestCmd())
	cmd.AddCommand(newConnectionsDeactivateCmd())
	return cmd
}

func newConnectionsListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/connections"
			if all {
				path += "?all=true"
			}
			var result struct {
				Connections []connection `json:"connections"`
				Count       int          `json:"count"`
			}
			if err := newClient().getJSON(path, &result); err != nil {
				return fmt.Errorf("failed to list connections: %w", err)
			}
			if structured() {
				return printOutput(result)
			}

			rows := make([][]string, 0, len(result.Connections))
			for _, c := range result.Connections {
				rows = append(rows, []string{
					strconv.FormatUint(uint64(c.ID), 10),
					c.Name,
					c.Organization,
					c.Type,
					strconv.FormatBool(c.IsActive),
					truncate(c.BaseURL, 50),
				})
			}
			printTable([]string{"ID", "Name", "Organization", "Type", "Active", "Base URL"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include inactive connections")
	return cmd
}

// connectionFlags binds the writable connection fields to cmd.
func connectionFlags(cmd *cobra.Command, in map[string]*string) {
	in["name"] = cmd.Flags().String("name", "", "Display name (default: the organization)")
	in["baseUrl"] = cmd.Flags().String("base-url", "", "Organization URL (default: https://dev.azure.com/<org>)")
	in["patToken"] = cmd.Flags().String("token", envOr("ADO_PAT", ""), "Personal access token (default: $ADO_PAT)")
	in["type"] = cmd.Flags().String("type", "source", "Connection type: source or target")
}

func connectionBody(org string, in map[string]*string) map[string]string {
	body := map[string]string{"organization": org}
	for k, v := range in {
		if *v != "" {
			body[k] = *v
		}
	}
	return body
}

func newConnectionsAddCmd() *cobra.Command {
	in := map[string]*string{}
	cmd := &cobra.Command{
		Use:   "add <organization>",
		Short: "Create or update the connection for an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c connection
			if err := newClient().postJSON("/api/connections", connectionBody(args[0], in), &c); err != nil {
				return fmt.Errorf("failed to save connection: %w", err)
			}
			if structured() {
				return printOutput(c)
			}
			fmt.Fprintf(stdout, "Connection %d saved for %s\n", c.ID, c.Organization)
			return nil
		},
	}
	connectionFlags(cmd, in)
	return cmd
}

func newConnectionsTestCmd() *cobra.Command {
	in := map[string]*string{}
	cmd := &cobra.Command{
		Use:   "test <organization>",
		Short: "List the projects visible with the given credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Success      bool     `json:"success"`
				Organization string   `json:"organization"`
				ProjectCount int      `json:"projectCount"`
				Projects     []string `json:"projects"`
			}
			if err := newClient().postJSON("/api/connections/test", connectionBody(args[0], in), &result); err != nil {
				return fmt.Errorf("connection test failed: %w", err)
			}
			if structured() {
				return printOutput(result)
			}
			fmt.Fprintf(stdout, "Connected to %s: %d projects\n", result.Organization, result.ProjectCount)
			for _, p := range result.Projects {
				fmt.Fprintf(stdout, "  %s\n", p)
			}
			return nil
		},
	}
	connectionFlags(cmd, in)
	return cmd
}

func newConnectionsDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().postJSON("/api/connections/"+args[0]+":deactivate", nil, nil); err != nil {
				return fmt.Errorf("failed to deactivate connection: %w", err)
			}
			fmt.Fprintf(stdout, "Connection %s deactivated\n", args[0])
			return nil
		},
	}
}
