package validator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"custodia/internal/audit"
	"custodia/internal/validator/metrics"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
)

// Store persists validators keyed by principal, with nodeId unique across
// the set.
type Store interface {
	Create(ctx context.Context, v *Validator) error
	Find(ctx context.Context, principal domain.Principal) (*Validator, error)
	FindByNodeID(ctx context.Context, nodeID string) (*Validator, error)
	Update(ctx context.Context, v *Validator) error
	List(ctx context.Context) ([]Validator, error)
}

// IdentityChecker answers whether a principal has a registered identity.
type IdentityChecker interface {
	Exists(ctx context.Context, principal domain.Principal) (bool, error)
}

// AuditSink appends an entry inside the current transition.
type AuditSink interface {
	CreateEntry(ctx context.Context, subject domain.Principal, systemType domain.SystemType, actionTypeID, dataHash string, extra map[string]string) (uint64, error)
}

type Clock func() time.Time

// Config bounds registration and liveness.
type Config struct {
	// MinStake is the least stake a validator must post to register.
	MinStake float64
	// Staleness is how old a health check may be before the validator
	// degrades to unhealthy.
	Staleness time.Duration
}

// Service tracks validator registration and liveness. Health is
// self-reported; this core records it, it does not verify it.
type Service struct {
	store      Store
	identities IdentityChecker
	cfg        Config
	logger     *slog.Logger
	auditSink  AuditSink
	metrics    *metrics.Metrics
	clock      Clock
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditSink(sink AuditSink) Option {
	return func(s *Service) { s.auditSink = sink }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func New(store Store, identities IdentityChecker, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:      store,
		identities: identities,
		cfg:        cfg,
		logger:     slog.Default(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterValidator admits a node into the validator set. The principal must
// hold a registered identity and post at least the minimum stake; nodeId is
// unique across the set. New validators start active and optimistically
// healthy.
func (s *Service) RegisterValidator(ctx context.Context, principal domain.Principal, nodeID, endpointHash string, stake float64) (*Validator, error) {
	if nodeID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "node id cannot be empty")
	}
	if stake < s.cfg.MinStake {
		return nil, dErrors.New(dErrors.CodeInsufficientStake, "stake below configured minimum")
	}

	exists, err := s.identities.Exists(ctx, principal)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
	}

	if _, err := s.store.FindByNodeID(ctx, nodeID); err == nil {
		return nil, dErrors.New(dErrors.CodeDuplicate, "node id already registered")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check node id")
	}

	v := &Validator{
		Principal:         principal,
		NodeID:            nodeID,
		EndpointHash:      endpointHash,
		Stake:             stake,
		Active:            true,
		Healthy:           true,
		LastHealthCheckAt: s.clock(),
	}
	if err := s.store.Create(ctx, v); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeDuplicate, "validator already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register validator")
	}

	if err := s.audit(ctx, principal, audit.ActionValidatorRegistered, endpointHash, map[string]string{
		"node_id": nodeID,
	}); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		// Gauges move only once the transition commits.
		tx.AfterCommit(ctx, func() {
			s.metrics.ActiveValidators.Inc()
			s.metrics.HealthyValidators.Inc()
		})
	}
	s.logger.InfoContext(ctx, "validator registered",
		"principal", principal.String(),
		"node_id", nodeID,
		"stake", stake,
	)
	return v, nil
}

// SubmitHealthCheck records a validator's self-report and refreshes
// lastHealthCheckAt.
func (s *Service) SubmitHealthCheck(ctx context.Context, principal domain.Principal, statusHash string, healthy bool, latencyMs, errorCount int) error {
	v, err := s.load(ctx, principal)
	if err != nil {
		return err
	}

	v.Healthy = healthy
	v.LatencyMs = latencyMs
	v.ErrorCount = errorCount
	v.LastHealthCheckAt = s.clock()
	if err := s.store.Update(ctx, v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record health check")
	}

	if s.metrics != nil {
		tx.AfterCommit(ctx, func() {
			s.metrics.IncHealthCheck(healthy)
			s.metrics.ObserveReportedLatency(float64(latencyMs) / 1000)
		})
	}
	s.logger.DebugContext(ctx, "health check recorded",
		"principal", principal.String(),
		"healthy", healthy,
		"latency_ms", latencyMs,
		"status_hash", statusHash,
	)
	return nil
}

// IsValidatorHealthy derives liveness lazily from the last self-report and
// the staleness threshold.
func (s *Service) IsValidatorHealthy(ctx context.Context, principal domain.Principal) (bool, error) {
	v, err := s.load(ctx, principal)
	if err != nil {
		return false, err
	}
	return v.HealthyAt(s.clock(), s.cfg.Staleness), nil
}

// GetValidator returns a registered validator.
func (s *Service) GetValidator(ctx context.Context, principal domain.Principal) (*Validator, error) {
	return s.load(ctx, principal)
}

// Quorum reports healthy versus total active validators. An empty set
// yields a zero ratio.
func (s *Service) Quorum(ctx context.Context) (*QuorumView, error) {
	validators, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list validators")
	}

	now := s.clock()
	view := &QuorumView{}
	for i := range validators {
		if !validators[i].Active {
			continue
		}
		view.Total++
		if validators[i].HealthyAt(now, s.cfg.Staleness) {
			view.Healthy++
		}
	}
	if view.Total > 0 {
		view.Ratio = float64(view.Healthy) / float64(view.Total)
	}

	if s.metrics != nil {
		s.metrics.HealthyValidators.Set(float64(view.Healthy))
		s.metrics.ActiveValidators.Set(float64(view.Total))
	}
	return view, nil
}

func (s *Service) load(ctx context.Context, principal domain.Principal) (*Validator, error) {
	v, err := s.store.Find(ctx, principal)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "validator not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load validator")
	}
	return v, nil
}

func (s *Service) audit(ctx context.Context, subject domain.Principal, actionTypeID, dataHash string, extra map[string]string) error {
	if s.auditSink == nil {
		return nil
	}
	// Errors propagate so the surrounding transition aborts rather than
	// letting state and audit diverge.
	if _, err := s.auditSink.CreateEntry(ctx, subject, domain.SystemCore, actionTypeID, dataHash, extra); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit entry for validator registration")
	}
	return nil
}
