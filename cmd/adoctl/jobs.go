package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and control extraction jobs",
	}
	cmd.AddCommand(newJobsListCmd())
	cmd.AddCommand(newJobsGetCmd())
	cmd.AddCommand(newJobsCancelCmd())
	cmd.AddCommand(newJobsReextractCmd())
	cmd.AddCommand(newJobsLogsCmd())
	return cmd
}

func printJobs(jobs []job) {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID,
			strconv.FormatUint(uint64(j.ProjectID), 10),
			j.ArtifactType,
			j.Status,
			strconv.Itoa(j.Progress) + "%",
			fmt.Sprintf("%d/%d", j.ExtractedItems, j.TotalItems),
			truncate(j.ErrorMessage, 50),
		})
	}
	printTable([]string{"ID", "Project", "Artifact", "Status", "Progress", "Items", "Error"}, rows)
}

func newJobsListCmd() *cobra.Command {
	var (
		projectID    uint
		artifactType string
		status       string
		pageSize     int
		pageToken    string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if projectID != 0 {
				q.Set("projectId", strconv.FormatUint(uint64(projectID), 10))
			}
			if artifactType != "" {
				q.Set("artifactType", artifactType)
			}
			if status != "" {
				q.Set("status", status)
			}
			if pageSize > 0 {
				q.Set("pageSize", strconv.Itoa(pageSize))
			}
			if pageToken != "" {
				q.Set("pageToken", pageToken)
			}
			path := "/api/jobs"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var result struct {
				Jobs          []job  `json:"jobs"`
				NextPageToken string `json:"nextPageToken"`
				TotalSize     int    `json:"totalSize"`
			}
			if err := newClient().getJSON(path, &result); err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}
			if structured() {
				return printOutput(result)
			}
			printJobs(result.Jobs)
			fmt.Fprintf(stdout, "Total: %d\n", result.TotalSize)
			if result.NextPageToken != "" {
				fmt.Fprintf(stdout, "Next page: --page-token %s\n", result.NextPageToken)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.UintVar(&projectID, "project", 0, "Only jobs of this project")
	f.StringVar(&artifactType, "type", "", "Only jobs of this artifact type")
	f.StringVar(&status, "status", "", "Only jobs with this status")
	f.IntVar(&pageSize, "page-size", 0, "Jobs per page")
	f.StringVar(&pageToken, "page-token", "", "Continue from a previous page")
	return cmd
}

func newJobsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <jobId>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var j job
			if err := newClient().getJSON("/api/jobs/"+args[0], &j); err != nil {
				return fmt.Errorf("failed to get job: %w", err)
			}
			if structured() {
				return printOutput(j)
			}
			printJobs([]job{j})
			return nil
		},
	}
}

func newJobsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <jobId>",
		Short: "Cancel a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Status string `json:"status"`
				JobID  string `json:"jobId"`
			}
			if err := newClient().postJSON("/api/jobs/"+args[0]+":cancel", nil, &result); err != nil {
				return fmt.Errorf("cancel failed: %w", err)
			}
			if structured() {
				return printOutput(result)
			}
			fmt.Fprintf(stdout, "Job %s %s\n", result.JobID, result.Status)
			return nil
		},
	}
}

func newJobsReextractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reextract <jobId>",
		Short: "Start a new job for the same project and artifact type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var j job
			if err := newClient().postJSON("/api/jobs/"+args[0]+":reextract", nil, &j); err != nil {
				return fmt.Errorf("reextract failed: %w", err)
			}
			if structured() {
				return printOutput(j)
			}
			printJobs([]job{j})
			return nil
		},
	}
}

func newJobsLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <jobId>",
		Short: "Show the log of a job, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Logs []logEntry `json:"logs"`
			}
			if err := newClient().getJSON("/api/jobs/"+args[0]+"/logs", &result); err != nil {
				return fmt.Errorf("failed to get job logs: %w", err)
			}
			if structured() {
				return printOutput(result)
			}
			printLogs(result.Logs)
			return nil
		},
	}
}
