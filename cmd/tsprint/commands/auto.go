package commands

import (
	"log/slog"
	"path/filepath"
	"tsprint/lib/osutil"
	"tsprint/lib/scrapers/papercut"
	"tsprint/lib/telemetry"

	"github.com/spf13/cobra"
)

var autoCopies *int
var autoPrinterIndex *int
var autoPrinter *string

func init() {
	autoCopies = autoCmd.Flags().Int("copies", 1, "Number of copies.")
	autoPrinterIndex = autoCmd.Flags().Int(
		"printer-index", 0,
		"Index of the web print queue to submit to (see list-webprint).",
	)
	autoPrinter = autoCmd.Flags().String("printer", "", "Substring of the printer to release to.")
	rootCmd.AddCommand(autoCmd)
}

var autoCmd = &cobra.Command{
	Use:   "auto <file> [--copies N] [--printer <substring>]",
	Short: "Uploads a document, waits for it to appear in the release queue and releases it.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		// Ctrl+C should abort the poll cleanly instead of leaving a
		// half-walked form chain
		ctx := osutil.SignalContext()
		telemetry.InstrumentPerfStats(ctx)

		client := newClient(ctx)

		err := client.Upload(ctx, papercut.UploadOptions{
			File:         args[0],
			Copies:       *autoCopies,
			PrinterIndex: *autoPrinterIndex,
		})
		if err != nil {
			fatal("upload failed", err)
		}

		slog.Info("waiting for job to appear in release queue...")
		job, err := client.WaitForJob(ctx, filepath.Base(args[0]))
		if err != nil {
			fatal("job never appeared in the release queue", err)
		}
		slog.Info("job found", "job", job.Name)

		err = client.Release(ctx, job, *autoPrinter)
		if err != nil {
			fatal("release failed", err)
		}
		slog.Info("job released", "job", job.Name)
	},
}
