// Package app assembles the ingestion stack from configuration. Both the
// REST API and the batch importer start from here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/02loveslollipop/estufa-iot/services/api/config"
	"github.com/02loveslollipop/estufa-iot/services/api/db"
	"github.com/02loveslollipop/estufa-iot/services/api/events"
	"github.com/02loveslollipop/estufa-iot/services/api/ingest"
	"github.com/02loveslollipop/estufa-iot/services/api/metrics"
	"github.com/02loveslollipop/estufa-iot/services/api/model"
	"github.com/02loveslollipop/estufa-iot/services/api/store"
	"github.com/02loveslollipop/estufa-iot/services/api/validation"
)

// Stack holds everything built from a Config. Close releases it.
type Stack struct {
	Schema    *validation.SchemaValidator
	Limits    validation.LimitTable
	Pipeline  *validation.Pipeline
	Store     store.BlobStore
	Publisher events.Publisher
	Metrics   *metrics.Collector
	Ingest    *ingest.Service

	closers []func() error
}

// Build loads the schema and range limits, opens the configured storage
// backend and event publisher, and wires the ingest service.
//
// A schema that fails to load is not an error here: the pipeline reports
// it per request so that the process can still start and be fixed by a
// reload.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*Stack, error) {
	s := &Stack{Metrics: metrics.New()}

	limits, err := LoadLimits(cfg)
	if err != nil {
		return nil, err
	}
	s.Limits = limits

	s.Schema = LoadSchema(cfg)
	s.closers = append(s.closers, func() error { s.Schema.Close(); return nil })
	if err := s.Schema.Available(); err != nil {
		log.Error("reference schema not loaded", slog.String("path", cfg.SchemaPath), slog.Any("error", err))
		s.Metrics.SetSchemaAvailable(false)
	} else {
		s.Metrics.SetSchemaAvailable(true)
	}

	s.Pipeline = validation.NewPipeline(s.Schema, validation.NewRuleValidator(limits),
		validation.WithObserver(s.Metrics.ObserveTransition),
	)

	st, closeStore, err := OpenStore(ctx, cfg, log)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Store = st
	s.closers = append(s.closers, closeStore)

	pub, err := NewPublisher(cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Publisher = pub
	s.closers = append(s.closers, pub.Close)

	s.Ingest = ingest.NewService(s.Pipeline, s.Store,
		ingest.WithPublisher(pub),
		ingest.WithMetrics(s.Metrics),
		ingest.WithLogger(log),
	)

	log.Info("ingestion stack ready",
		slog.String("storage", cfg.StorageBackend),
		slog.Any("limits", limits.Types()),
		slog.Bool("events", len(cfg.KafkaBrokers) > 0),
	)
	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// LoadSchema compiles SCHEMA_PATH, or the embedded schema when unset.
func LoadSchema(cfg config.Config) *validation.SchemaValidator {
	if cfg.SchemaPath == "" {
		return validation.NewSchemaValidator(model.Schema)
	}
	return validation.LoadSchemaFile(cfg.SchemaPath)
}

// LoadLimits reads RANGE_LIMITS_PATH, or returns the built-in table.
func LoadLimits(cfg config.Config) (validation.LimitTable, error) {
	if cfg.RangeLimitsPath == "" {
		return validation.DefaultLimits(), nil
	}
	limits, err := validation.LoadLimits(cfg.RangeLimitsPath)
	if err != nil {
		return validation.LimitTable{}, fmt.Errorf("range limits: %w", err)
	}
	return limits, nil
}

// OpenStore opens the configured document store.
func OpenStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.BlobStore, func() error, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pg, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connection error: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return pg, func() error { pg.Close(); return nil }, nil
	default:
		fs, err := store.NewFileStore(cfg.DataDir, log)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() error { return nil }, nil
	}
}

// NewPublisher returns a Kafka publisher when brokers are configured.
func NewPublisher(cfg config.Config) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}, nil
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
}
