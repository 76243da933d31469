package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/02loveslollipop/estufa-iot/services/api/app"
	"github.com/02loveslollipop/estufa-iot/services/api/logging"
	"github.com/02loveslollipop/estufa-iot/services/importer/internal/batch"
	"github.com/02loveslollipop/estufa-iot/services/importer/internal/config"
	"github.com/02loveslollipop/estufa-iot/services/importer/internal/source"
)

var errIncomplete = errors.New("import incomplete")

func main() {
	if err := run(); err != nil {
		log.Fatalf("importer failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{Level: cfg.API.LogLevel, Format: cfg.API.LogFormat})
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stack, err := app.Build(ctx, cfg.API, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := stack.Pipeline.Available(); err != nil {
		return err
	}

	im := batch.New(stack.Ingest, cfg.DryRun, logger)

	if cfg.ImportDir != "" {
		paths, err := source.ListDir(cfg.ImportDir)
		if err != nil {
			return err
		}
		logger.Info("importing directory", slog.String("dir", cfg.ImportDir), slog.Int("files", len(paths)), slog.Bool("dry_run", cfg.DryRun))
		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := source.ReadFile(path)
			if err != nil {
				im.Fail(path, err)
				continue
			}
			im.Import(ctx, doc)
		}
	}

	client := &http.Client{Timeout: cfg.RequestTimeout}
	for _, url := range cfg.ImportURLs {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := source.Fetch(ctx, client, url, cfg.API.MaxDocumentBytes)
		if err != nil {
			im.Fail(url, err)
			continue
		}
		im.Import(ctx, doc)
	}

	sum := im.Summary()
	logger.Info("import finished",
		slog.Int("accepted", sum.Accepted),
		slog.Int("rejected", sum.Rejected),
		slog.Int("failed", sum.Failed),
		slog.Bool("dry_run", cfg.DryRun),
	)
	if !sum.OK() {
		return fmt.Errorf("%w: %d rejected, %d failed", errIncomplete, sum.Rejected, sum.Failed)
	}
	return nil
}
