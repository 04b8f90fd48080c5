package main

import (
	"context"
	"tsprint/cmd/tsprint/commands"
	"tsprint/lib/telemetry"
)

func main() {
	ctx := context.Background()
	telemetry.InitSlog(true)
	tel, err := telemetry.SetupFromEnv(ctx, "tsprint")
	if err == nil {
		defer tel.Shutdown(ctx)
	}
	commands.ExecuteContext(ctx)
}
