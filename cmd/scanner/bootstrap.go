package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"breakout-scanner/internal/acquisition"
	"breakout-scanner/internal/cache"
	"breakout-scanner/internal/config"
	"breakout-scanner/internal/events"
	"breakout-scanner/internal/interfaces"
	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/marketclock"
	"breakout-scanner/internal/notifier"
	"breakout-scanner/internal/orchestrator"
	"breakout-scanner/internal/provider"
	"breakout-scanner/internal/scheduler"
	"breakout-scanner/internal/universe"
	"breakout-scanner/internal/watchlist"
)

// app holds everything the composition root wires together, in the order
// shutdown must unwind it.
type app struct {
	orchestrator *orchestrator.Orchestrator
	tracker      *watchlist.Tracker
	sched        *scheduler.Scheduler
	bus          *events.Bus
	metricsSrv   *http.Server
	redis        *cache.RedisKV
}

func bootstrap(ctx context.Context, cfg *config.Config, env *config.Env) (*app, error) {
	clock, err := marketclock.New(cfg.Market.Location, cfg.Market.Open, cfg.Market.Close)
	if err != nil {
		return nil, fmt.Errorf("market clock: %w", err)
	}

	a := &app{}

	kv := buildKV(ctx, cfg, env, a)
	cacheStore := cache.NewStore(kv, time.Now)

	var metrics *scheduler.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics = scheduler.NewMetrics(reg)
		a.metricsSrv = &http.Server{
			Addr:    cfg.Metrics.Addr,
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.ErrorWithErr(ctx, "metrics server failed", err)
			}
		}()
		logger.Info(ctx, "Metrics server listening", "addr", cfg.Metrics.Addr)
	}

	a.sched = scheduler.New(scheduler.Config{
		MinInterval: time.Duration(cfg.Scheduler.MinIntervalMs) * time.Millisecond,
		RetryDelay:  time.Duration(cfg.Scheduler.RetryDelayMs) * time.Millisecond,
		MaxRetries:  cfg.Scheduler.MaxRetries,
	}, metrics)

	prov, err := buildProvider(cfg, env)
	if err != nil {
		return nil, err
	}

	acq := acquisition.New(prov, cacheStore, a.sched, clock, acquisition.Config{
		BatchSize:  cfg.Acquisition.BatchSize,
		BatchDelay: time.Duration(cfg.Acquisition.BatchDelayMs) * time.Millisecond,
		CacheTTL:   time.Duration(cfg.Acquisition.CacheTTLMinutes) * time.Minute,
	})

	a.bus = events.NewBus(64)
	if env.TelegramBotToken != "" && env.TelegramChatID != "" {
		notifier.Attach(a.bus, notifier.NewTelegram(
			env.TelegramBotToken, env.TelegramChatID, cfg.Data.ProxyURL))
		logger.Info(ctx, "Telegram notifications enabled")
	} else {
		notifier.Attach(a.bus, notifier.Log{})
	}
	a.bus.Start()

	a.tracker = watchlist.New(acq, a.sched, clock, a.bus, kv)
	if err := a.tracker.Restore(ctx); err != nil {
		logger.Warn(ctx, "No watchlist snapshot restored", "error", err)
	}

	src := buildUniverse(cfg)
	a.orchestrator = orchestrator.New(acq, cfg.Strategy, a.tracker, a.bus, clock,
		src.Tickers, orchestrator.Config{
			TopN:         cfg.Watchlist.TopN,
			PollInterval: time.Duration(cfg.Watchlist.PollSeconds) * time.Second,
		})

	return a, nil
}

// buildKV selects the cache backend. Redis is preferred when configured but
// an unreachable server degrades to in-process memory rather than failing
// the boot.
func buildKV(ctx context.Context, cfg *config.Config, env *config.Env, a *app) interfaces.KVStore {
	if cfg.Cache.Backend != "redis" {
		return cache.NewMemoryKV()
	}
	rdb := cache.NewRedisKV(env.RedisAddr, env.RedisPassword, env.RedisDB)
	if err := rdb.Ping(ctx); err != nil {
		logger.Warn(ctx, "Redis unreachable, falling back to memory cache",
			"addr", env.RedisAddr, "error", err)
		_ = rdb.Close()
		return cache.NewMemoryKV()
	}
	a.redis = rdb
	logger.Info(ctx, "Using Redis cache", "addr", env.RedisAddr)
	return rdb
}

func buildProvider(cfg *config.Config, env *config.Env) (interfaces.PriceProvider, error) {
	yahoo := provider.NewYahoo(cfg.Data.ProxyURL)
	switch cfg.Data.Source {
	case "yahoo":
		return yahoo, nil
	case "kite", "chain":
		if env.KiteAPIKey == "" || env.KiteAccessToken == "" {
			return nil, fmt.Errorf("data.source %q requires KITE_API_KEY and KITE_ACCESS_TOKEN", cfg.Data.Source)
		}
		kite := provider.NewKite(env.KiteAPIKey, env.KiteAccessToken,
			cfg.Data.KiteExchange, cfg.Data.KiteTokens)
		if cfg.Data.Source == "kite" {
			return kite, nil
		}
		return provider.NewChain(kite, yahoo), nil
	}
	return nil, fmt.Errorf("invalid data.source %q", cfg.Data.Source)
}

func buildUniverse(cfg *config.Config) universe.Source {
	static := universe.Static{List: cfg.Universe.Static}
	if !cfg.Universe.Dynamic.Enabled {
		return static
	}
	return universe.Combined{
		Static:  static,
		Dynamic: universe.NewScraper(15 * time.Second),
		Limit:   cfg.Universe.Dynamic.TopN,
	}
}

// run starts the cron schedule and blocks until the context is cancelled.
func (a *app) run(ctx context.Context, cfg *config.Config) error {
	if cfg.Scan.RunOnStart {
		go a.orchestrator.ScanAndTrack(ctx)
	}
	if err := a.orchestrator.Schedule(ctx, cfg.Scan.Cron); err != nil {
		return fmt.Errorf("schedule scans: %w", err)
	}
	logger.Info(ctx, "Scanner running", "cron", cfg.Scan.Cron)

	<-ctx.Done()
	logger.Info(context.Background(), "Shutdown signal received")
	return nil
}

// shutdown unwinds in reverse dependency order so nothing publishes to a
// stopped bus or submits to a stopped scheduler.
func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.orchestrator.StopSchedule()
	a.tracker.Stop(ctx)
	a.sched.Stop()
	a.bus.Stop()
	if a.metricsSrv != nil {
		_ = a.metricsSrv.Shutdown(ctx)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
