package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/02loveslollipop/estufa-iot/services/api/app"
	"github.com/02loveslollipop/estufa-iot/services/api/config"
	httpserver "github.com/02loveslollipop/estufa-iot/services/api/http"
	"github.com/02loveslollipop/estufa-iot/services/api/logging"
	"github.com/02loveslollipop/estufa-iot/services/api/schemawatch"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("api failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stack, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Error("shutdown", slog.Any("error", err))
		}
	}()

	// Background workers stop before the stack is closed.
	var workers sync.WaitGroup
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	if cfg.SchemaWatch {
		watcher, err := schemawatch.New(cfg.SchemaPath, stack.Schema,
			schemawatch.WithLogger(logger),
			schemawatch.WithResultHook(stack.Metrics.ObserveReload),
		)
		if err != nil {
			return err
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := watcher.Run(workerCtx); err != nil {
				logger.Error("schema watcher stopped", slog.Any("error", err))
			}
		}()
	}

	srv := httpserver.New(cfg, httpserver.Dependencies{
		Ingest:  stack.Ingest,
		Store:   stack.Store,
		Metrics: stack.Metrics,
		Logger:  logger,
	})

	return srv.Run(ctx)
}
