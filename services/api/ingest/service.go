// Package ingest hands validated documents to the byte store.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/02loveslollipop/estufa-iot/services/api/events"
	"github.com/02loveslollipop/estufa-iot/services/api/metrics"
	"github.com/02loveslollipop/estufa-iot/services/api/store"
	"github.com/02loveslollipop/estufa-iot/services/api/validation"
)

// Receipt describes an accepted document.
type Receipt struct {
	ID       string           `json:"id"`
	Root     string           `json:"root"`
	Sensors  int              `json:"sensors"`
	Readings int              `json:"readings"`
	State    validation.State `json:"-"`
}

// Service runs the validation pipeline and persists accepted documents.
type Service struct {
	pipeline  *validation.Pipeline
	store     store.BlobStore
	publisher events.Publisher
	metrics   *metrics.Collector
	log       *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the acceptance event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithNow is useful for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires a pipeline to a store.
func NewService(p *validation.Pipeline, st store.BlobStore, opts ...Option) *Service {
	s := &Service{
		pipeline:  p,
		store:     st,
		publisher: events.NopPublisher{},
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pipeline returns the validation pipeline.
func (s *Service) Pipeline() *validation.Pipeline {
	return s.pipeline
}

// Submit validates raw and stores the original bytes. A receipt is only
// returned once the store reported a durable write.
func (s *Service) Submit(ctx context.Context, raw []byte) (Receipt, error) {
	doc, err := s.pipeline.Validate(raw)
	if err != nil {
		s.reject(err, len(raw))
		return Receipt{}, err
	}

	id, err := s.store.Put(ctx, doc.Raw)
	if err != nil {
		perr := &validation.PersistenceError{Err: err}
		s.log.Error("document persistence failed", slog.Int("bytes", len(raw)), slog.Any("error", err))
		s.metrics.ObserveOutcome(perr)
		return Receipt{}, perr
	}
	doc.State = validation.StateAccepted

	receipt := Receipt{
		ID:       id,
		Root:     doc.Root,
		Sensors:  len(doc.Sensors),
		Readings: len(doc.Readings),
		State:    doc.State,
	}
	s.metrics.ObserveOutcome(nil)
	s.log.Info("document accepted",
		slog.String("id", id),
		slog.Int("sensors", receipt.Sensors),
		slog.Int("readings", receipt.Readings),
		slog.Int("bytes", len(raw)),
	)

	ev := events.Accepted{
		ID:         id,
		Root:       doc.Root,
		Sensors:    receipt.Sensors,
		Readings:   receipt.Readings,
		Bytes:      len(raw),
		AcceptedAt: s.now().UTC(),
	}
	if err := s.publisher.PublishAccepted(ctx, ev); err != nil {
		s.log.Warn("accepted event not published", slog.String("id", id), slog.Any("error", err))
	}

	return receipt, nil
}

// Check validates raw without storing it.
func (s *Service) Check(raw []byte) (*validation.Document, error) {
	doc, err := s.pipeline.Validate(raw)
	if err != nil {
		s.log.Debug("document check failed", slog.String("kind", string(validation.KindOf(err))), slog.Any("error", err))
		return nil, err
	}
	return doc, nil
}

func (s *Service) reject(err error, size int) {
	s.metrics.ObserveOutcome(err)

	kind := validation.KindOf(err)
	attrs := []any{slog.String("kind", string(kind)), slog.Int("bytes", size)}
	var ruleErr *validation.RuleError
	if errors.As(err, &ruleErr) {
		attrs = append(attrs, slog.String("locator", ruleErr.Locator))
	}

	if validation.ClientFault(kind) {
		s.log.Info("document rejected", append(attrs, slog.String("reason", err.Error()))...)
		return
	}
	s.log.Error("document not processed", append(attrs, slog.Any("error", err))...)
}
