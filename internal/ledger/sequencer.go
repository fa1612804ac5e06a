package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"custodia/internal/platform/metrics"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/tx"
)

// Invalidator drops read-model cache entries for a subject after a command
// commits. Nil-able.
type Invalidator interface {
	Invalidate(ctx context.Context, principal domain.Principal) error
}

type submission struct {
	ctx  context.Context
	cmd  *Command
	resp chan result
}

type result struct {
	value any
	err   error
}

// Sequencer is the single writer. Every command enters through Submit, is
// stamped into the total order, and is applied by the one Run goroutine
// against committed state. A transition either fully applies, including its
// audit side effect and its log append, or leaves no trace.
type Sequencer struct {
	log        Log
	runner     tx.Runner
	dispatcher *Dispatcher
	clock      *CommandClock

	logger      *slog.Logger
	metrics     *metrics.Metrics
	invalidator Invalidator
	tracer      trace.Tracer

	submissions chan submission
}

type SequencerOption func(*Sequencer)

func WithLogger(logger *slog.Logger) SequencerOption {
	return func(s *Sequencer) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) SequencerOption {
	return func(s *Sequencer) { s.metrics = m }
}

func WithInvalidator(inv Invalidator) SequencerOption {
	return func(s *Sequencer) { s.invalidator = inv }
}

const submissionBacklog = 256

func NewSequencer(log Log, runner tx.Runner, dispatcher *Dispatcher, clock *CommandClock, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		log:         log,
		runner:      runner,
		dispatcher:  dispatcher,
		clock:       clock,
		logger:      slog.Default(),
		tracer:      otel.Tracer("custodia/ledger"),
		submissions: make(chan submission, submissionBacklog),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit places a command into the total order and waits for its outcome.
// Commands are not cancellable once accepted; a caller that gives up waiting
// must compensate, not retry blindly.
func (s *Sequencer) Submit(ctx context.Context, cmd *Command) (any, error) {
	if err := cmd.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid command")
	}
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}
	if cmd.SubmittedAt.IsZero() {
		cmd.SubmittedAt = time.Now().UTC()
	}

	sub := submission{ctx: ctx, cmd: cmd, resp: make(chan result, 1)}
	select {
	case s.submissions <- sub:
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "command not accepted")
	}

	select {
	case res := <-sub.resp:
		return res.value, res.err
	case <-ctx.Done():
		// The command stays in the order; only the caller stops waiting.
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "command accepted but result not delivered")
	}
}

// Run applies submissions one at a time until ctx is cancelled. It must be
// the only goroutine ever calling apply.
func (s *Sequencer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub := <-s.submissions:
			value, err := s.apply(sub.ctx, sub.cmd)
			sub.resp <- result{value: value, err: err}
		}
	}
}

func (s *Sequencer) apply(ctx context.Context, cmd *Command) (any, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.apply",
		trace.WithAttributes(
			attribute.String("command.kind", string(cmd.Kind)),
			attribute.String("command.subject", cmd.Subject.String()),
		))
	defer span.End()

	start := time.Now()
	var value any
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		s.clock.enter(cmd.SubmittedAt)
		defer s.clock.exit()

		var applyErr error
		value, applyErr = s.dispatcher.Apply(txCtx, cmd)
		if applyErr != nil {
			return applyErr
		}
		// The log append joins the same boundary: a command is in the
		// order iff its transition committed.
		return s.log.Append(txCtx, cmd)
	})

	outcome := "applied"
	if err != nil {
		outcome = "rejected"
		span.RecordError(err)
		span.SetStatus(codes.Error, "command rejected")
		s.logger.WarnContext(ctx, "command rejected",
			"kind", string(cmd.Kind),
			"subject", cmd.Subject.String(),
			"error", err,
		)
	}
	if s.metrics != nil {
		s.metrics.IncCommand(string(cmd.Kind), outcome)
		s.metrics.ObserveApply(time.Since(start).Seconds())
	}

	if err == nil && s.invalidator != nil {
		if invErr := s.invalidator.Invalidate(ctx, cmd.Subject); invErr != nil {
			s.logger.WarnContext(ctx, "cache invalidation failed",
				"subject", cmd.Subject.String(),
				"error", invErr,
			)
		}
	}
	return value, err
}

// Replay re-executes the committed log in order against fresh state. Errors
// from individual commands are impossible in an uncorrupted log, since only
// applied commands were appended; any that do surface abort the replay.
func (s *Sequencer) Replay(ctx context.Context) error {
	return s.log.Replay(ctx, func(cmd *Command) error {
		s.clock.enter(cmd.SubmittedAt)
		defer s.clock.exit()
		_, err := s.dispatcher.Apply(ctx, cmd)
		return err
	})
}
