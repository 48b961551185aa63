package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"breakout-scanner/internal/config"
	"breakout-scanner/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	scanOnce := flag.Bool("once", false, "run a single scan and exit")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	if err := logger.InitWithConfig(logger.LoadConfigFromEnv()); err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.ErrorWithErr(ctx, "failed to load configuration", err)
		logger.Shutdown(ctx)
		os.Exit(1)
	}
	env, err := config.LoadEnv()
	if err != nil {
		logger.ErrorWithErr(ctx, "failed to load environment", err)
		logger.Shutdown(ctx)
		os.Exit(1)
	}

	app, err := bootstrap(ctx, cfg, env)
	if err != nil {
		logger.ErrorWithErr(ctx, "bootstrap failed", err)
		logger.Shutdown(ctx)
		os.Exit(1)
	}

	exitCode := 0
	if *scanOnce {
		result, err := app.orchestrator.RunScan(ctx)
		if err != nil {
			logger.ErrorWithErr(ctx, "scan failed", err)
			exitCode = 1
		} else {
			app.orchestrator.RefreshWatchlist(ctx, result)
		}
	} else {
		if err := app.run(ctx, cfg); err != nil {
			logger.ErrorWithErr(ctx, "scanner exited with error", err)
			exitCode = 1
		}
	}

	app.shutdown()
	logger.Shutdown(context.Background())
	os.Exit(exitCode)
}
