package app

import (
	"log/slog"

	"github.com/budapestmetrodisplay/metrodisplay/internal/appconf"
	"github.com/budapestmetrodisplay/metrodisplay/internal/brightness"
	"github.com/budapestmetrodisplay/metrodisplay/internal/clock"
	"github.com/budapestmetrodisplay/metrodisplay/internal/ingest"
	"github.com/budapestmetrodisplay/metrodisplay/internal/metrics"
	"github.com/budapestmetrodisplay/metrodisplay/internal/render"
	"github.com/budapestmetrodisplay/metrodisplay/internal/sacn"
	"github.com/budapestmetrodisplay/metrodisplay/internal/topology"
)

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware. The HTTP layer only reads from it.
type Application struct {
	Config   appconf.Config
	Logger   *slog.Logger
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	Network  *topology.Network
	Ingest   *ingest.Engine
	Renderer *render.Engine
	// Brightness is nil when the MQTT listener is disabled.
	Brightness *brightness.Listener
	// Sender is nil in tests that render into a recording sink.
	Sender *sacn.Sender
}
