package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"tsprint/lib/configutil"
	"tsprint/lib/restyutil"
	"tsprint/lib/scrapers/papercut"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const defaultBaseUrl = "https://followme.imtbs-tsp.eu"

// Config is read from tsprint.json5 (plus tsprint.local.json5
// overrides) in the working directory.
type Config struct {
	BaseUrl string `json:"base_url"`
}

var debugHttp *string

var rootCmd = &cobra.Command{
	Use:   "tsprint",
	Short: "tsprint is a CLI for submitting and releasing print jobs on a PaperCut web print portal.",
}

func init() {
	debugHttp = rootCmd.PersistentFlags().String(
		"debug-http", "",
		"Directory to dump every http request/response exchanged with the portal into.",
	)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

// newClient builds a portal client and logs it in with the
// credentials from the environment. Every command starts here, the
// portal has no session persistence worth keeping between runs.
func newClient(ctx context.Context) *papercut.Client {
	username := os.Getenv("IMPRIMERIE_USER")
	password := os.Getenv("IMPRIMERIE_PASS")
	if username == "" || password == "" {
		slog.Error("IMPRIMERIE_USER and IMPRIMERIE_PASS must be set in the environment")
		os.Exit(1)
	}

	cfg, err := configutil.Read[Config]("tsprint.json5")
	if err != nil && !os.IsNotExist(err) {
		fatal("failed to read config", err)
	}
	if cfg.BaseUrl == "" {
		cfg.BaseUrl = defaultBaseUrl
	}

	if *debugHttp != "" {
		papercut.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(*debugHttp))
	}

	client, err := papercut.NewClient(ctx, papercut.ClientOptions{
		BaseUrl: cfg.BaseUrl,
	})
	if err != nil {
		fatal("failed to initialize client", err)
	}

	err = client.Login(ctx, username, password)
	if err != nil {
		fatal("login failed", err)
	}

	return client
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
