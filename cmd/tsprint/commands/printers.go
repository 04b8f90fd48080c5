package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listPrintersJobName *string

func init() {
	listPrintersJobName = listPrintersCmd.Flags().String(
		"job-name", "",
		"Substring of the held job whose release stations should be listed.",
	)
	rootCmd.AddCommand(listWebPrintCmd)
	rootCmd.AddCommand(listPrintersCmd)
}

var listWebPrintCmd = &cobra.Command{
	Use:   "list-webprint",
	Short: "Lists the virtual web print queues a document can be submitted to.",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(cmd.Context())

		printers, err := client.WebPrintPrinters(cmd.Context())
		if err != nil {
			fatal("failed to list web print queues", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Index", "Queue"})
		for _, p := range printers {
			t.AppendRow(table.Row{p.Index, p.Label})
		}
		t.Render()
	},
}

var listPrintersCmd = &cobra.Command{
	Use:   "list-printers [--job-name <substring>]",
	Short: "Lists the physical release stations available for a held job.",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(cmd.Context())

		jobs, err := client.PendingJobs(cmd.Context())
		if err != nil {
			fatal("failed to list pending jobs", err)
		}
		job, err := selectJob(jobs, *listPrintersJobName)
		if err != nil {
			fatal("could not pick a job", err)
		}

		printers, err := client.ReleasePrinters(cmd.Context(), job)
		if err != nil {
			fatal("failed to list release stations", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Printer", "Status"})
		for _, p := range printers {
			t.AppendRow(table.Row{p.Name, p.Status})
		}
		t.Render()
	},
}
