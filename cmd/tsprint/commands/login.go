package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Checks that the credentials in the environment can open a portal session.",
	Run: func(cmd *cobra.Command, args []string) {
		newClient(cmd.Context())
		slog.Info("login successful")
	},
}
