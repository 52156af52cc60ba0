// Package apptest builds a small wired Application for HTTP layer tests.
package apptest

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/budapestmetrodisplay/metrodisplay/internal/app"
	"github.com/budapestmetrodisplay/metrodisplay/internal/appconf"
	"github.com/budapestmetrodisplay/metrodisplay/internal/clock"
	"github.com/budapestmetrodisplay/metrodisplay/internal/ingest"
	"github.com/budapestmetrodisplay/metrodisplay/internal/metrics"
	"github.com/budapestmetrodisplay/metrodisplay/internal/render"
	"github.com/budapestmetrodisplay/metrodisplay/internal/topology"
)

// Start is the mock clock's time in every Application built here.
var Start = time.Date(2024, 5, 6, 8, 58, 0, 0, time.UTC)

type discardSink struct{}

func (discardSink) Send([]byte) error { return nil }

// NetworkConfig has two routes: M1 (BKK_5100) with two stops on LEDs 0 and 1,
// and the realtime H5 (BKK_5200) with one stop on LED 2.
func NetworkConfig() appconf.NetworkConfig {
	return appconf.NetworkConfig{
		Routes: []appconf.RouteConfig{
			{
				RouteID: "BKK_5100", Name: "M1", Type: "subway", Color: "FFD800",
				Stops: []appconf.StopConfig{
					{Name: "Vörösmarty tér", LED: 0, Terminus: true, StopIDs: []string{"F1a", "F1b"}},
					{Name: "Bajza utca", LED: 1, StopIDs: []string{"F2a"}},
				},
			},
			{
				RouteID: "BKK_5200", Name: "H5", Type: "railway", Color: "821066", Realtime: true,
				Stops: []appconf.StopConfig{
					{Name: "Batthyány tér", LED: 2, Terminus: true, StopIDs: []string{"F3"}},
				},
			},
		},
	}
}

// New returns an Application whose schedulers are not started. The ingest
// engine has no API client, so nothing here may run a fetch.
func New(t testing.TB) (*app.Application, *clock.MockClock) {
	t.Helper()

	cfg := appconf.Default()
	cfg.Env = appconf.Test
	cfg.BKK.APIKey = "test"
	cfg.HTTP.RateLimit = 100
	cfg.Network = NetworkConfig()

	network, err := topology.Build(cfg.Network, nil)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewMockClock(Start)
	m := metrics.New()

	ingestCfg := ingest.ConfigFrom(cfg.BKK, cfg.LED)
	ingestCfg.Location = time.UTC
	engine := ingest.New(network, nil, clk, ingestCfg,
		ingest.WithLogger(logger), ingest.WithMetrics(m))
	renderer := render.New(network, discardSink{}, clk, render.ConfigFrom(cfg.LED, cfg.SACN),
		render.WithLogger(logger), render.WithMetrics(m))

	return &app.Application{
		Config:   cfg,
		Logger:   logger,
		Clock:    clk,
		Metrics:  m,
		Network:  network,
		Ingest:   engine,
		Renderer: renderer,
	}, clk
}

// Seed queues three API polls and two transitions:
//
//	M1_REGULAR at Start, H5_REALTIME at Start+1m, BKK_5100_ALERTS at Start+2m
//	F3 departure of trip T2 at Start+3m, F1a arrival of trip T1 at Start+5m
func Seed(a *app.Application) {
	a.Ingest.ScheduleFetch("BKK_5100", ingest.Regular, Start)
	a.Ingest.ScheduleFetch("BKK_5200", ingest.Realtime, Start.Add(time.Minute))
	a.Ingest.ScheduleAlerts("BKK_5100", Start.Add(2*time.Minute))

	tr := a.Ingest.Transitions()
	tr.Schedule(ingest.TransitionKey("F3", "T2", ingest.Departure), Start.Add(3*time.Minute),
		ingest.TransitionJob{StopID: "F3", RouteID: "BKK_5200", TripID: "T2", Kind: ingest.Departure})
	tr.Schedule(ingest.TransitionKey("F1a", "T1", ingest.Arrival), Start.Add(5*time.Minute),
		ingest.TransitionJob{StopID: "F1a", RouteID: "BKK_5100", TripID: "T1", Kind: ingest.Arrival, Presence: 30 * time.Second})
}
