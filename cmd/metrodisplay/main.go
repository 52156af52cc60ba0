package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/budapestmetrodisplay/metrodisplay/internal/appconf"
	"github.com/budapestmetrodisplay/metrodisplay/internal/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	env := flag.String("env", "", "override the configured environment (development|test|production)")
	apiKeys := flag.String("api-keys", "", "comma separated status API keys, replacing http.api_keys")
	verbose := flag.Bool("verbose", false, "log at debug level")
	flag.Parse()

	cfg, err := appconf.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "metrodisplay: %v\n", err)
		os.Exit(1)
	}
	if *env != "" {
		cfg.Env = appconf.EnvFlagToEnvironment(*env)
	}
	if *apiKeys != "" {
		cfg.HTTP.APIKeys = ParseAPIKeys(*apiKeys)
	}
	cfg.Verbose = cfg.Verbose || *verbose

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewLogger(os.Stdout, level, cfg.Env == appconf.Production)
	slog.SetDefault(logger)

	coreApp, err := BuildApplication(cfg, logger)
	if err != nil {
		logging.LogError(logger, "failed to build application", err)
		os.Exit(1)
	}

	srv, api := CreateServer(coreApp, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, srv, coreApp, api); err != nil {
		logging.LogError(logger, "display stopped with error", err)
		os.Exit(1)
	}
}
