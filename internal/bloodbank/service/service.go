// Package service orchestrates the blood bank: donor and requestor
// registration, donations, request submission and fulfillment, search and
// dashboard statistics.
package service

import (
	"context"
	"log/slog"

	"hemalink/internal/bloodbank/events"
	"hemalink/internal/bloodbank/fulfillment"
	"hemalink/internal/bloodbank/inventory"
	"hemalink/internal/bloodbank/metrics"
	"hemalink/internal/bloodbank/store"
	"hemalink/internal/storage"
	dErrors "hemalink/pkg/domain-errors"
)

// Service is the single entry point used by the HTTP handlers and the CLI.
type Service struct {
	backend  storage.Backend
	records  *store.Records
	ledger   *inventory.Ledger
	engine   *fulfillment.Engine
	logger   *slog.Logger
	metrics  *metrics.Metrics
	notifier *events.Notifier
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithNotifier enables notifications. Without it nothing is published.
func WithNotifier(n *events.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// New wires the service over backend. Reads go through a storage.Guard;
// read-modify-write paths use backend transactions directly.
func New(backend storage.Backend, opts ...Option) *Service {
	s := &Service{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	s.records = store.New(storage.NewGuard(backend, s.logger))
	s.ledger = inventory.New(backend, s.records,
		inventory.WithLogger(s.logger),
		inventory.WithMetrics(s.metrics),
	)
	s.engine = fulfillment.New(backend, s.records, s.ledger,
		fulfillment.WithLogger(s.logger),
		fulfillment.WithMetrics(s.metrics),
	)
	return s
}

// Backend names the storage backend in use.
func (s *Service) Backend() string {
	return s.backend.Name()
}

// Health reports whether the storage backend answers.
func (s *Service) Health(ctx context.Context) error {
	if err := s.backend.Health(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage backend unavailable")
	}
	return nil
}
