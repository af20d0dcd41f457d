package core

import (
	"context"
	"fmt"
	"time"

	"mortgageintake/pkg/domain"
)

// ReportArchive stores execution reports once a batch completes.
type ReportArchive interface {
	Save(ctx context.Context, report ExecutionReport) error
}

// Service processes intake batches against a persistent store, archiving each
// report when an archive is configured.
type Service struct {
	store    PersistentStore
	mutator  *StoreMutator
	pipeline *Pipeline
	archive  ReportArchive
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	clock    Clock
	extra    []PipelineOption
}

// Option configures optional Service behaviour.
type Option func(*Service)

// WithLogger sets the logger shared by the service and its pipeline.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder shared by the service and its pipeline.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer shared by the service and its pipeline.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides the service clock.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithArchive stores every report after processing.
func WithArchive(a ReportArchive) Option {
	return func(s *Service) { s.archive = a }
}

// WithPipelineOptions forwards additional options to the pipeline.
func WithPipelineOptions(opts ...PipelineOption) Option {
	return func(s *Service) { s.extra = append(s.extra, opts...) }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		mutator: NewStoreMutator(store),
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		clock:   ClockFunc(time.Now),
	}
	for _, opt := range opts {
		opt(s)
	}
	popts := append([]PipelineOption{
		WithPipelineLogger(s.logger),
		WithPipelineMetrics(s.metrics),
		WithPipelineTracer(s.tracer),
		WithPipelineClock(s.clock),
	}, s.extra...)
	s.pipeline = NewPipeline(popts...)
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Mutator returns the store-backed mutator the pipeline applies actions through.
func (s *Service) Mutator() *StoreMutator { return s.mutator }

// Process runs one batch against a fresh snapshot of the store. The report is
// archived even when some actions failed; an archive error is returned along
// with the report.
func (s *Service) Process(ctx context.Context, actions []Action) (ExecutionReport, error) {
	view := s.store.SnapshotView()
	report, err := s.pipeline.Run(ctx, actions, view, s.mutator)
	if err != nil {
		return report, err
	}
	if s.archive == nil {
		return report, nil
	}
	if err := s.archive.Save(ctx, report); err != nil {
		s.logger.Error("archive report failed", "batch_id", report.BatchID, "error", err)
		return report, fmt.Errorf("archive report %s: %w", report.BatchID, err)
	}
	return report, nil
}

// Client returns a client by id from committed state.
func (s *Service) Client(ctx context.Context, id string) (domain.Client, error) {
	var client domain.Client
	err := s.store.View(ctx, func(v StateView) error {
		c, ok := v.FindClient(id)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityClient, ID: id}
		}
		client = c
		return nil
	})
	return client, err
}
