package commands

import (
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(jobsCmd)
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Lists the jobs held in the release queue.",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(cmd.Context())

		jobs, err := client.PendingJobs(cmd.Context())
		if err != nil {
			fatal("failed to list pending jobs", err)
		}
		if len(jobs) == 0 {
			slog.Info("no pending jobs found")
			return
		}

		t := newTable()
		t.AppendHeader(table.Row{"#", "Document"})
		for i, job := range jobs {
			t.AppendRow(table.Row{i + 1, job.Name})
		}
		t.Render()
	},
}
