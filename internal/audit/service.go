package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"custodia/internal/platform/metrics"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
)

// Store persists the append-only trail. Append must reject a duplicate
// (subject, sequence) pair so the gap-free invariant survives even a buggy
// caller.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	LastSequence(ctx context.Context, subject domain.Principal) (uint64, error)
	ListBySubject(ctx context.Context, subject domain.Principal) ([]Entry, error)
	CountBySubject(ctx context.Context, subject domain.Principal) (uint64, error)
	Stats(ctx context.Context) (*Statistics, error)
}

// RegistryStore persists action types.
type RegistryStore interface {
	CreateActionType(ctx context.Context, at *ActionType) error
	FindActionType(ctx context.Context, id string) (*ActionType, error)
}

// IdentityChecker answers whether a subject exists. Implemented by the
// identity service; defined here to keep package boundaries one-way.
type IdentityChecker interface {
	Exists(ctx context.Context, principal domain.Principal) (bool, error)
}

// Publisher mirrors committed entries to an external stream. Optional; core
// state remains authoritative.
type Publisher interface {
	Emit(ctx context.Context, entry Entry) error
}

type Clock func() time.Time

// Service is the audit trail plus the action type registry. CreateEntry is
// the only way any component persists history; it runs inside the same
// transition as the triggering state change.
type Service struct {
	store      Store
	registry   RegistryStore
	identities IdentityChecker
	publisher  Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	clock      Clock
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func New(store Store, registry RegistryStore, identities IdentityChecker, opts ...Option) *Service {
	s := &Service{
		store:      store,
		registry:   registry,
		identities: identities,
		logger:     slog.Default(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterActionType adds a registry entry. Fails with CodeDuplicate when
// the id already exists; entries are never mutated after creation.
func (s *Service) RegisterActionType(ctx context.Context, at ActionType) error {
	if at.ID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "action type id cannot be empty")
	}
	if at.RetentionDays < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "retention days cannot be negative")
	}
	at.CreatedAt = s.clock()
	if err := s.registry.CreateActionType(ctx, &at); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeDuplicate, "action type already registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register action type")
	}
	return nil
}

// RegisterCoreActionTypes seeds the registry with the core's own action
// types. Idempotent: duplicates from a previous run are skipped.
func (s *Service) RegisterCoreActionTypes(ctx context.Context) error {
	for _, at := range coreActionTypes {
		if err := s.RegisterActionType(ctx, at); err != nil {
			if dErrors.HasCode(err, dErrors.CodeDuplicate) {
				continue
			}
			return err
		}
	}
	return nil
}

// GetActionType returns a registered action type.
func (s *Service) GetActionType(ctx context.Context, id string) (*ActionType, error) {
	at, err := s.registry.FindActionType(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "action type not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load action type")
	}
	return at, nil
}

// CreateEntry appends one audit entry with the next per-subject sequence
// number and returns it. Fails with CodeNotFound for an unregistered action
// type or an unknown subject.
func (s *Service) CreateEntry(ctx context.Context, subject domain.Principal, systemType domain.SystemType, actionTypeID, dataHash string, extra map[string]string) (uint64, error) {
	if _, err := s.GetActionType(ctx, actionTypeID); err != nil {
		return 0, err
	}
	exists, err := s.identities.Exists(ctx, subject)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, dErrors.New(dErrors.CodeNotFound, "identity not found")
	}

	last, err := s.store.LastSequence(ctx, subject)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read last sequence")
	}

	entry := &Entry{
		Subject:      subject,
		Sequence:     last + 1,
		SystemType:   systemType,
		ActionTypeID: actionTypeID,
		DataHash:     dataHash,
		Extra:        extra,
		CreatedAt:    s.clock(),
	}
	if err := s.store.Append(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return 0, dErrors.New(dErrors.CodeConflict, "sequence collision on append")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit entry")
	}

	if s.metrics != nil {
		tx.AfterCommit(ctx, s.metrics.IncAuditEntry)
	}
	if s.publisher != nil {
		// Stream mirroring is best-effort; committed state is the source
		// of truth for sequence numbers.
		if err := s.publisher.Emit(ctx, *entry); err != nil {
			s.logger.WarnContext(ctx, "audit stream emit failed",
				"subject", subject.String(),
				"sequence", entry.Sequence,
				"error", err,
			)
		}
	}
	return entry.Sequence, nil
}

// ListBySubject returns the full trail for one subject in sequence order.
func (s *Service) ListBySubject(ctx context.Context, subject domain.Principal) ([]Entry, error) {
	return s.store.ListBySubject(ctx, subject)
}

// SubjectEntryCount returns the number of entries for one subject.
func (s *Service) SubjectEntryCount(ctx context.Context, subject domain.Principal) (uint64, error) {
	return s.store.CountBySubject(ctx, subject)
}

// GetStatistics returns global aggregates.
func (s *Service) GetStatistics(ctx context.Context) (*Statistics, error) {
	return s.store.Stats(ctx)
}
