package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"schoolmap-api/internal/cache/rediscache"
	"schoolmap-api/internal/controller"
	"schoolmap-api/internal/core/config"
	"schoolmap-api/internal/core/observability"
	"schoolmap-api/internal/core/router"
	"schoolmap-api/internal/core/server"
	"schoolmap-api/internal/dataset"
	"schoolmap-api/internal/filter"
	"schoolmap-api/internal/invalidation/kafkaconsumer"
	"schoolmap-api/internal/logger"
	"schoolmap-api/internal/markers"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	dataFlag := flag.String("data", "", "path to the geocoded schools CSV (overrides DATA_PATH)")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.FromEnv()
	if *dataFlag != "" {
		cfg.DataPath = strings.TrimSpace(*dataFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "schoolmap",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting schoolmap server",
		"addr", cfg.Addr, "version", Version, "data", cfg.DataPath)

	// a failed load leaves the service up in an empty state: empty dropdowns,
	// empty map, readiness reporting not_ready
	store, err := dataset.LoadFile(cfg.DataPath)
	if err != nil {
		appLog.Error("dataset load failed", "path", cfg.DataPath, "err", err)
		store = dataset.Empty()
	}
	observability.SetDatasetRecords(store.Len())
	observability.SetDatasetVersion(store.Version())
	appLog.Info("dataset loaded", "records", store.Len())

	engine := filter.NewEngine(store, cfg.OptionMemoSize)
	layer := markers.NewLayer(appLog)
	ctrl := controller.New(appLog, engine, layer)
	ctrl.OnInitialLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cache router.ResponseCache
	if cfg.CacheEnabled {
		rc, err := rediscache.New(ctx, cfg.RedisAddr)
		if err != nil {
			appLog.Warn("query cache disabled: redis unavailable", "err", err)
		} else {
			defer func() { _ = rc.Close() }()
			cache = rc
		}
	}

	if cfg.Invalidation.Enabled {
		consumer := kafkaconsumer.New(
			kafkaconsumer.FromService(cfg.Invalidation.Brokers, cfg.Invalidation.Topic, cfg.Invalidation.GroupID),
			appLog, store, engine,
		)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				appLog.Error("invalidation consumer exited", "err", err)
			}
		}()
	}

	deps := server.Deps{Store: store, Engine: engine, Ctrl: ctrl, Layer: layer, Cache: cache}
	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
