package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/budapestmetrodisplay/metrodisplay/internal/app"
	"github.com/budapestmetrodisplay/metrodisplay/internal/appconf"
	"github.com/budapestmetrodisplay/metrodisplay/internal/brightness"
	"github.com/budapestmetrodisplay/metrodisplay/internal/clock"
	"github.com/budapestmetrodisplay/metrodisplay/internal/gtfs"
	"github.com/budapestmetrodisplay/metrodisplay/internal/ingest"
	"github.com/budapestmetrodisplay/metrodisplay/internal/logging"
	"github.com/budapestmetrodisplay/metrodisplay/internal/metrics"
	"github.com/budapestmetrodisplay/metrodisplay/internal/oba"
	"github.com/budapestmetrodisplay/metrodisplay/internal/render"
	"github.com/budapestmetrodisplay/metrodisplay/internal/restapi"
	"github.com/budapestmetrodisplay/metrodisplay/internal/sacn"
	"github.com/budapestmetrodisplay/metrodisplay/internal/topology"
	"github.com/budapestmetrodisplay/metrodisplay/internal/webui"
)

const (
	catalogTimeout  = 2 * time.Minute
	shutdownTimeout = 30 * time.Second
	queueInterval   = 5 * time.Second
)

// ParseAPIKeys splits a comma separated key list and trims every key.
func ParseAPIKeys(s string) []string {
	if s == "" {
		return []string{}
	}
	keys := strings.Split(s, ",")
	for i, key := range keys {
		keys[i] = strings.TrimSpace(key)
	}
	return keys
}

// BuildApplication wires every component from cfg without starting any of them.
func BuildApplication(cfg appconf.Config, logger *slog.Logger) (*app.Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
	defer cancel()
	catalog, err := gtfs.LoadRouteCatalog(ctx, cfg.GTFS.StaticPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load GTFS route catalog: %w", err)
	}

	network, err := topology.Build(cfg.Network, catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to build network: %w", err)
	}

	m := metrics.NewWithLogger(logger)
	clk := clock.RealClock{}

	sacnOpts := sacn.OptionsFrom(cfg.SACN)
	sacnOpts.Logger = logger
	sender, err := sacn.NewSender(sacnOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open sACN output: %w", err)
	}

	ingestCfg := ingest.ConfigFrom(cfg.BKK, cfg.LED)
	client := oba.NewClient(oba.Options{
		BaseURL:     cfg.BKK.BaseURL,
		APIKey:      cfg.BKK.APIKey,
		AppVersion:  cfg.BKK.AppVersion,
		CallSpacing: ingestCfg.CallSpacing,
		Logger:      logger,
	})
	engine := ingest.New(network, client, clk, ingestCfg,
		ingest.WithLogger(logger), ingest.WithMetrics(m))

	renderOpts := []render.Option{render.WithLogger(logger), render.WithMetrics(m)}
	var listener *brightness.Listener
	if cfg.Brightness.Enabled {
		listener = brightness.New(cfg.Brightness, logger)
		renderOpts = append(renderOpts, render.WithBrightness(listener))
	}
	renderer := render.New(network, sender, clk, render.ConfigFrom(cfg.LED, cfg.SACN), renderOpts...)

	logging.LogOperation(logger, "application_built",
		slog.Int("routes", len(network.Routes())),
		slog.Int("leds", len(network.LEDs())),
		slog.Int("catalog_routes", len(catalog)),
		slog.String("env", cfg.Env.String()))

	return &app.Application{
		Config:     cfg,
		Logger:     logger,
		Clock:      clk,
		Metrics:    m,
		Network:    network,
		Ingest:     engine,
		Renderer:   renderer,
		Brightness: listener,
		Sender:     sender,
	}, nil
}

// CreateServer builds the status HTTP server. The caller owns api.Shutdown.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	api := restapi.NewRestAPI(coreApp)
	webUI := webui.NewWebUI(coreApp)

	mux := http.NewServeMux()
	api.SetRoutes(mux)
	webUI.SetWebUIRoutes(mux)

	// The metrics layer must hand the mux the same request to read back r.Pattern.
	handler := restapi.NewRequestLoggingMiddleware(coreApp.Logger)(
		restapi.MetricsHandler(coreApp.Metrics)(
			gzhttp.GzipHandler(mux)))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(coreApp.Logger.Handler(), slog.LevelError),
	}
	return srv, api
}

// Run starts every component, serves until ctx ends, then shuts down in
// reverse order.
func Run(ctx context.Context, srv *http.Server, coreApp *app.Application, api *restapi.RestAPI) error {
	logger := coreApp.Logger
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	if coreApp.Brightness != nil {
		if err := coreApp.Brightness.Start(); err != nil {
			logging.LogWarn(logger, "brightness feedback unavailable, using full brightness", err)
		}
	}

	coreApp.Ingest.Start(runCtx)
	coreApp.Metrics.StartQueueCollector(map[string]metrics.Sizer{
		ingest.UpdateSchedulerName:     coreApp.Ingest.Updates(),
		ingest.TransitionSchedulerName: coreApp.Ingest.Transitions(),
	}, queueInterval)

	renderDone := make(chan error, 1)
	go func() { renderDone <- coreApp.Renderer.Run(runCtx) }()

	serveErr := make(chan error, 1)
	go func() {
		logging.LogOperation(logger, "http_server_started", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	logging.LogOperation(logger, "shutting_down")
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(logger, "http server shutdown failed", err)
	}
	api.Shutdown()

	coreApp.Ingest.Shutdown()
	if err := <-renderDone; err != nil && runErr == nil {
		runErr = fmt.Errorf("renderer: %w", err)
	}
	if coreApp.Brightness != nil {
		coreApp.Brightness.Stop()
	}
	if coreApp.Sender != nil {
		logging.SafeCloseWithLogging(coreApp.Sender, logger, "sACN sender")
	}
	coreApp.Metrics.Shutdown()

	logging.LogOperation(logger, "shutdown_complete")
	return runErr
}
