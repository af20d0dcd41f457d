package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mortgageintake/pkg/domain"
)

// Pipeline resolves addresses, merges duplicate creates, validates and
// executes one batch of proposed actions.
type Pipeline struct {
	resolver    AddressResolver
	validator   *Validator
	concurrency int
	newBatchID  func() string
	obs         observer
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithAddressResolver sets the place lookup used by the resolve stage. Without
// one, addresses pass through unchanged.
func WithAddressResolver(r AddressResolver) PipelineOption {
	return func(p *Pipeline) { p.resolver = r }
}

// WithRulesEngine replaces the default validation rules.
func WithRulesEngine(engine *RulesEngine) PipelineOption {
	return func(p *Pipeline) { p.validator = NewValidator(engine) }
}

// WithResolveConcurrency bounds parallel address lookups.
func WithResolveConcurrency(n int) PipelineOption {
	return func(p *Pipeline) { p.concurrency = n }
}

// WithBatchIDGenerator overrides the batch id source.
func WithBatchIDGenerator(fn func() string) PipelineOption {
	return func(p *Pipeline) {
		if fn != nil {
			p.newBatchID = fn
		}
	}
}

// WithPipelineLogger sets the logger used by every stage.
func WithPipelineLogger(l Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.obs.logger = l
		}
	}
}

// WithPipelineMetrics sets the recorder observing stage outcomes. Recorders
// that implement ReportRecorder also receive the final report.
func WithPipelineMetrics(m MetricsRecorder) PipelineOption {
	return func(p *Pipeline) {
		if m != nil {
			p.obs.metrics = m
		}
	}
}

// WithPipelineTracer sets the tracer wrapping each stage.
func WithPipelineTracer(t Tracer) PipelineOption {
	return func(p *Pipeline) {
		if t != nil {
			p.obs.tracer = t
		}
	}
}

// WithPipelineClock sets the clock used for stage durations.
func WithPipelineClock(c Clock) PipelineOption {
	return func(p *Pipeline) {
		if c != nil {
			p.obs.clock = c
		}
	}
}

// NewPipeline constructs a pipeline with the default rules.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		validator:   NewValidator(nil),
		concurrency: DefaultResolveConcurrency,
		newBatchID:  uuid.NewString,
		obs: observer{
			logger:  noopLogger{},
			metrics: noopMetrics{},
			tracer:  noopTracer{},
			clock:   ClockFunc(time.Now),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes actions against view and applies the accepted ones through
// mutator. Per-action problems are reported, not returned; the error is
// non-nil only for a malformed batch or a placeholder claimed twice, in which
// case nothing is mutated.
func (p *Pipeline) Run(ctx context.Context, actions []Action, view StateView, mutator Mutator) (ExecutionReport, error) {
	batchID := p.newBatchID()
	ctx = WithBatchID(ctx, batchID)

	batch := make([]Action, len(actions))
	for i, a := range actions {
		if err := checkShape(a); err != nil {
			return ExecutionReport{BatchID: batchID}, err
		}
		a.Index = i
		a.ReturnID = domain.NormalizePlaceholder(a.ReturnID)
		batch[i] = a
	}

	var report ExecutionReport
	err := p.obs.observe(ctx, OpPipeline, func(ctx context.Context) error {
		claimed, err := claimPlaceholders(batch)
		if err != nil {
			return err
		}

		var unresolved []domain.UnresolvedAddress
		_ = p.obs.observe(ctx, OpResolve, func(ctx context.Context) error {
			batch, unresolved = ResolveAddresses(ctx, batch, p.resolver, p.concurrency)
			return nil
		})

		var merged MergeResult
		_ = p.obs.observe(ctx, OpMerge, func(context.Context) error {
			merged = MergeDuplicates(batch, view)
			return nil
		})

		var accepted []Action
		var issues []ActionIssue
		_ = p.obs.observe(ctx, OpValidate, func(ctx context.Context) error {
			accepted, issues = p.validator.ValidateAll(ctx, merged.Actions, view)
			return nil
		})

		return p.obs.observe(ctx, OpExecute, func(ctx context.Context) error {
			exec := NewExecutor(mutator, p.obs.logger)
			exec.claimed = claimed
			var err error
			report, err = exec.Execute(ctx, accepted, merged.Aliases)
			report.Issues = issues
			report.Merged = merged.Merged
			report.Unresolved = unresolved
			return err
		})
	})
	report.BatchID = batchID
	if err != nil {
		return report, err
	}
	if rr, ok := p.obs.metrics.(ReportRecorder); ok {
		rr.RecordReport(ctx, report)
	}
	p.obs.logger.Info("batch processed",
		"batch_id", batchID,
		"actions", len(actions),
		"applied", len(report.Applied),
		"failed", len(report.Failed),
		"rejected", len(report.Rejected()),
		"merged", len(report.Merged),
	)
	return report, nil
}

func checkShape(a Action) error {
	if a.Params == nil {
		return fmt.Errorf("%w: %s has no params", domain.ErrMalformedAction, a.Kind)
	}
	if a.Params.Kind() != a.Kind {
		return fmt.Errorf("%w: %s carries %s params", domain.ErrMalformedAction, a.Kind, a.Params.Kind())
	}
	return nil
}

// RunPipeline runs a single batch through a pipeline built from opts.
func RunPipeline(ctx context.Context, actions []Action, view StateView, mutator Mutator, opts ...PipelineOption) (ExecutionReport, error) {
	return NewPipeline(opts...).Run(ctx, actions, view, mutator)
}

// Execute applies already validated actions through mutator.
func Execute(ctx context.Context, actions []Action, mutator Mutator, aliases map[string]string) (ExecutionReport, error) {
	return NewExecutor(mutator, nil).Execute(ctx, actions, aliases)
}
