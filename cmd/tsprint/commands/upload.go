package commands

import (
	"log/slog"
	"tsprint/lib/scrapers/papercut"

	"github.com/spf13/cobra"
)

var uploadCopies *int
var uploadPrinterIndex *int

func init() {
	uploadCopies = uploadCmd.Flags().Int("copies", 1, "Number of copies.")
	uploadPrinterIndex = uploadCmd.Flags().Int(
		"printer-index", 0,
		"Index of the web print queue to submit to (see list-webprint).",
	)
	rootCmd.AddCommand(uploadCmd)
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file> [--copies N] [--printer-index N]",
	Short: "Uploads a document to the web print queue.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(cmd.Context())

		err := client.Upload(cmd.Context(), papercut.UploadOptions{
			File:         args[0],
			Copies:       *uploadCopies,
			PrinterIndex: *uploadPrinterIndex,
		})
		if err != nil {
			fatal("upload failed", err)
		}
		slog.Info("file uploaded to the web print queue", "file", args[0])
	},
}
