package main

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"proj"},
		Short:   "List, sync and inspect mirrored projects",
	}
	cmd.AddCommand(newProjectsListCmd())
	cmd.AddCommand(newProjectsGetCmd())
	cmd.AddCommand(newProjectsSyncCmd())
	cmd.AddCommand(newProjectsStatusCmd())
	cmd.AddCommand(newProjectsSummaryCmd())
	return cmd
}

func printProjects(projects []project) {
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(p.ID), 10),
			truncate(p.Name, 40),
			p.Status,
			p.ProcessTemplate,
			strconv.Itoa(p.WorkItemCount),
			strconv.Itoa(p.RepoCount),
			strconv.Itoa(p.PipelineCount),
		})
	}
	printTable([]string{"ID", "Name", "Status", "Process", "Work Items", "Repos", "Pipelines"}, rows)
}

func newProjectsListCmd() *cobra.Command {
	var status string
	var connectionID uint
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if connectionID != 0 {
				q.Set("connectionId", strconv.FormatUint(uint64(connectionID), 10))
			}
			path := "/api/projects"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			var result struct {
				Projects []project `json:"projects"`
				Count    int       `json:"count"`
			}
			if err := newClient().getJSON(path, &result); err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}
			if structured() {
				return printOutput(result)
			}
			printProjects(result.Projects)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only projects with this status")
	cmd.Flags().UintVar(&connectionID, "connection", 0, "Only projects of this connection")
	return cmd
}

func newProjectsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]any
			if err := newClient().getJSON("/api/projects/"+args[0], &result); err != nil {
				return fmt.Errorf("failed to get project: %w", err)
			}
			if structured() {
				return printOutput(result)
			}
			return printYAML(result)
		},
	}
}

func newProjectsSyncCmd() *cobra.Command {
	var connectionID uint
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh the project list from Azure DevOps",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]uint{}
			if connectionID != 0 {
				body["connectionId"] = connectionID
			}
			var result struct {
				ConnectionID uint      `json:"connectionId"`
				Synced       int       `json:"synced"`
				Projects     []project `json:"projects"`
				Errors       []string  `json:"errors,omitempty"`
			}
			if err := newClient().postJSON("/api/projects/sync", body, &result); err != nil {
				return fmt.Errorf("failed to sync projects: %w", err)
			}
			if structured() {
				return printOutput(result)
			}
			printProjects(result.Projects)
			fmt.Fprintf(stdout, "Synced %d projects from connection %d\n", result.Synced, result.ConnectionID)
			for _, e := range result.Errors {
				fmt.Fprintf(stdout, "  error: %s\n", e)
			}
			return nil
		},
	}
	cmd.Flags().UintVar(&connectionID, "connection", 0, "Connection to sync from (default: newest active)")
	return cmd
}

func newProjectsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <ready|selected|in_progress|migrated>",
		Short: "Set the migration status of a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p project
			if err := newClient().patchJSON("/api/projects/"+args[0]+"/status", map[string]string{"status": args[1]}, &p); err != nil {
				return fmt.Errorf("failed to update status: %w", err)
			}
			if structured() {
				return printOutput(p)
			}
			fmt.Fprintf(stdout, "Project %d is now %s\n", p.ID, p.Status)
			return nil
		},
	}
}

func newProjectsSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <id>",
		Short: "Show stored row counts and the latest job per artifact type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Project    project          `json:"project"`
				Counts     map[string]int64 `json:"counts"`
				LatestJobs map[string]job   `json:"latestJobs"`
			}
			if err := newClient().getJSON("/api/projects/"+args[0]+"/migration-summary", &result); err != nil {
				return fmt.Errorf("failed to get summary: %w", err)
			}
			if structured() {
				return printOutput(result)
			}

			tables := make([]string, 0, len(result.Counts))
			for t := range result.Counts {
				tables = append(tables, t)
			}
			sort.Strings(tables)
			rows := make([][]string, 0, len(tables))
			for _, t := range tables {
				rows = append(rows, []string{t, strconv.FormatInt(result.Counts[t], 10)})
			}
			printTable([]string{"Table", "Rows"}, rows)

			types := make([]string, 0, len(result.LatestJobs))
			for t := range result.LatestJobs {
				types = append(types, t)
			}
			sort.Strings(types)
			rows = rows[:0]
			for _, t := range types {
				j := result.LatestJobs[t]
				rows = append(rows, []string{t, j.Status, strconv.Itoa(j.Progress) + "%", truncate(j.ErrorMessage, 60)})
			}
			fmt.Fprintln(stdout)
			printTable([]string{"Artifact", "Status", "Progress", "Error"}, rows)
			return nil
		},
	}
}
