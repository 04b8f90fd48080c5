package papercut

import (
	"tsprint/lib/restyutil"
	"tsprint/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

var tracer = telemetry.Tracer("tsprint.lib.scrapers.papercut")

var restyInstrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput routes request/response dumps of clients
// created afterwards to `out`. Spans and debug logs are always on.
func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}

func instrument(client *resty.Client) {
	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)
}
