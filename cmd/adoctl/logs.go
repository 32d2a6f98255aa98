package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Browse extraction logs across jobs",
	}
	cmd.AddCommand(newLogsListCmd())
	cmd.AddCommand(newLogsSummaryCmd())
	return cmd
}

func printLogs(logs []logEntry) {
	rows := make([][]string, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, []string{l.Timestamp, l.Level, truncate(l.JobID, 12), truncate(l.Message, 80)})
	}
	printTable([]string{"Time", "Level", "Job", "Message"}, rows)
}

func newLogsListCmd() *cobra.Command {
	var (
		level     string
		projectID uint
		limit     int
		offset    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List log rows, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if level != "" {
				q.Set("level", level)
			}
			if projectID != 0 {
				q.Set("projectId", strconv.FormatUint(uint64(projectID), 10))
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}
			path := "/api/logs"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			var result struct {
				Logs  []logEntry `json:"logs"`
				Total int64      `json:"total"`
			}
			if err := newClient().getJSON(path, &result); err != nil {
				return fmt.Errorf("failed to list logs: %w", err)
			}
			if structured() {
				return printOutput(result)
			}
			printLogs(result.Logs)
			fmt.Fprintf(stdout, "Total: %d\n", result.Total)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&level, "level", "", "Only rows of this level (INFO, WARNING, ERROR)")
	f.UintVar(&projectID, "project", 0, "Only rows of this project's jobs")
	f.IntVar(&limit, "limit", 0, "Maximum rows (server default 100)")
	f.IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

func newLogsSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show log counts, success rate and recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sum logSummary
			if err := newClient().getJSON("/api/logs/summary", &sum); err != nil {
				return fmt.Errorf("failed to get log summary: %w", err)
			}
			if structured() {
				return printOutput(sum)
			}
			printTable([]string{"Metric", "Value"}, [][]string{
				{"Operations", strconv.FormatInt(sum.TotalOperations, 10)},
				{"Info", strconv.FormatInt(sum.InfoCount, 10)},
				{"Warnings", strconv.FormatInt(sum.WarningCount, 10)},
				{"Errors", strconv.FormatInt(sum.ErrorCount, 10)},
				{"Success rate", strconv.FormatFloat(sum.SuccessRate, 'f', 1, 64) + "%"},
			})
			if len(sum.RecentErrors) > 0 {
				fmt.Fprintln(stdout, "\nRecent errors:")
				printLogs(sum.RecentErrors)
			}
			if len(sum.RecentJobs) > 0 {
				fmt.Fprintln(stdout, "\nRecent jobs:")
				printJobs(sum.RecentJobs)
			}
			return nil
		},
	}
}
