package telemetry

import (
	"log/slog"
	"os"
)

// InitSlog installs the process-wide slog handler. The log level
// comes from the TSPRINT_LOG environment variable ("debug" enables
// the http dump middleware in restyutil).
func InitSlog(pretty bool) {
	level := slog.LevelInfo
	if os.Getenv("TSPRINT_LOG") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if pretty {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
