package access

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"custodia/internal/audit"
	"custodia/internal/identity"
	"custodia/internal/platform/metrics"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
)

// Store persists grants, breach flags, and the OODA trail. TriggerBreach
// must be atomic: the flag and the mass revocation commit together or not
// at all.
type Store interface {
	UpsertGrant(ctx context.Context, grant *Grant) error
	FindGrant(ctx context.Context, subject, grantee domain.Principal, scope domain.AccessScope) (*Grant, error)
	ListBySubject(ctx context.Context, subject domain.Principal) ([]Grant, error)
	RevokeGrantee(ctx context.Context, subject, grantee domain.Principal) (int, error)
	BreachFlag(ctx context.Context, subject domain.Principal) (*BreachFlag, error)
	TriggerBreach(ctx context.Context, subject domain.Principal, flag *BreachFlag) (int, error)
	AppendOODA(ctx context.Context, entry *OODAEntry) error
	ListOODA(ctx context.Context, subject domain.Principal) ([]OODAEntry, error)
}

// IdentityGate is the slice of the identity registry the governor needs:
// subject status and the shared capability check.
type IdentityGate interface {
	Status(ctx context.Context, principal domain.Principal) (identity.Status, error)
	Authorize(ctx context.Context, caller, subject domain.Principal, capability identity.Capability) error
}

// AuditSink appends an entry inside the current transition.
type AuditSink interface {
	CreateEntry(ctx context.Context, subject domain.Principal, systemType domain.SystemType, actionTypeID, dataHash string, extra map[string]string) (uint64, error)
}

type Clock func() time.Time

// Service is the access governor: request/grant/revoke of time-boxed
// grants, breach handling, and the OODA decision trail.
type Service struct {
	store      Store
	identities IdentityGate
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

func New(store Store, identities IdentityGate, opts ...Option) *Service {
	s := &Service{
		store:      store,
		identities: identities,
		logger:     slog.Default(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestAccess records a grantee's request against a subject. The grant is
// created in Requested state with no expiry; a repeated request for the same
// (subject, grantee, scope) overwrites the prior one.
func (s *Service) RequestAccess(ctx context.Context, subject, grantee domain.Principal, scope domain.AccessScope, purpose string) error {
	if !scope.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid scope")
	}
	status, err := s.identities.Status(ctx, subject)
	if err != nil {
		return err
	}
	if status != identity.StatusActive && status != identity.StatusEstateMode {
		return dErrors.New(dErrors.CodeNotFound, "subject cannot receive access requests")
	}

	grant := &Grant{
		Subject:     subject,
		Grantee:     grantee,
		Scope:       scope,
		Purpose:     purpose,
		State:       GrantRequested,
		RequestedAt: s.clock(),
	}
	if err := s.store.UpsertGrant(ctx, grant); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record access request")
	}

	s.logger.InfoContext(ctx, "access requested",
		"subject", subject.String(),
		"grantee", grantee.String(),
		"scope", scope.String(),
	)
	return nil
}

// GrantAccess promotes a requested grant to Active. Only the subject, or the
// estate delegate once the identity is in EstateMode, may grant.
func (s *Service) GrantAccess(ctx context.Context, caller, subject, grantee domain.Principal, scope domain.AccessScope, duration time.Duration, dataScope string) error {
	if duration <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "duration must be positive")
	}
	if err := s.identities.Authorize(ctx, caller, subject, identity.CapSubject); err != nil {
		return err
	}

	grant, err := s.store.FindGrant(ctx, subject, grantee, scope)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "no access request to grant")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grant")
	}
	if grant.State == GrantRevoked {
		return dErrors.New(dErrors.CodeInvalidState, "grant has been revoked")
	}

	now := s.clock()
	grant.State = GrantActive
	grant.DataScope = dataScope
	grant.ExpiresAt = now.Add(duration)
	grant.GrantedAt = now
	if err := s.store.UpsertGrant(ctx, grant); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate grant")
	}

	if err := s.audit(ctx, subject, audit.ActionAccessGranted, hashHex(dataScope), map[string]string{
		"grantee": grantee.String(),
		"scope":   scope.String(),
		"expires": grant.ExpiresAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}

	if s.metrics != nil {
		// Gauges move only once the transition commits.
		tx.AfterCommit(ctx, s.metrics.GrantsActive.Inc)
	}
	s.logger.InfoContext(ctx, "access granted",
		"subject", subject.String(),
		"grantee", grantee.String(),
		"scope", scope.String(),
		"expires_at", grant.ExpiresAt,
	)
	return nil
}

// RevokeAccess terminates every scope the grantee holds under the subject.
// Fails with CodeNotFound when the grantee holds nothing, so callers can
// tell "nothing to revoke" from success.
func (s *Service) RevokeAccess(ctx context.Context, caller, subject, grantee domain.Principal) error {
	if err := s.identities.Authorize(ctx, caller, subject, identity.CapSubject); err != nil {
		return err
	}

	revoked, err := s.store.RevokeGrantee(ctx, subject, grantee)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke grants")
	}
	if revoked == 0 {
		return dErrors.New(dErrors.CodeNotFound, "grantee holds no grants for subject")
	}

	if err := s.audit(ctx, subject, audit.ActionAccessRevoked, "", map[string]string{
		"grantee": grantee.String(),
		"revoked": strconv.Itoa(revoked),
	}); err != nil {
		return err
	}

	if s.metrics != nil {
		tx.AfterCommit(ctx, func() { s.metrics.GrantsActive.Sub(float64(revoked)) })
	}
	s.logger.InfoContext(ctx, "access revoked",
		"subject", subject.String(),
		"grantee", grantee.String(),
		"grants", revoked,
	)
	return nil
}

// HasAccess reports whether the grantee may touch the subject's data under
// the given scope right now. A breached subject admits no access at all.
func (s *Service) HasAccess(ctx context.Context, subject, grantee domain.Principal, scope domain.AccessScope) (bool, error) {
	flag, err := s.store.BreachFlag(ctx, subject)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load breach flag")
	}
	if flag != nil && flag.Active {
		return false, nil
	}

	grant, err := s.store.FindGrant(ctx, subject, grantee, scope)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grant")
	}
	return grant.UsableAt(s.clock()), nil
}

// ListGrants returns every grant recorded for the subject, in any state.
func (s *Service) ListGrants(ctx context.Context, subject domain.Principal) ([]Grant, error) {
	return s.store.ListBySubject(ctx, subject)
}

// TriggerPoisonPill flags the subject as breached and revokes every one of
// their grants in the same transition. Callable by the subject or a
// registrar. All-or-nothing: no observer may see the flag set while a grant
// remains active.
func (s *Service) TriggerPoisonPill(ctx context.Context, caller, subject domain.Principal, reason string) error {
	if err := s.identities.Authorize(ctx, caller, subject, identity.CapSubject); err != nil {
		if regErr := s.identities.Authorize(ctx, caller, subject, identity.CapRegistrar); regErr != nil {
			return err
		}
	}

	flag, err := s.store.BreachFlag(ctx, subject)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load breach flag")
	}
	if flag != nil && flag.Active {
		return dErrors.New(dErrors.CodeInvalidState, "breach already triggered")
	}

	revoked, err := s.store.TriggerBreach(ctx, subject, &BreachFlag{
		Active:      true,
		Reason:      reason,
		TriggeredAt: s.clock(),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to trigger breach")
	}

	if err := s.audit(ctx, subject, audit.ActionBreachTriggered, hashHex(reason), map[string]string{
		"revoked": strconv.Itoa(revoked),
	}); err != nil {
		return err
	}

	if s.metrics != nil {
		tx.AfterCommit(ctx, func() {
			s.metrics.IncBreach()
			s.metrics.GrantsActive.Sub(float64(revoked))
		})
	}
	s.logger.WarnContext(ctx, "poison pill triggered",
		"subject", subject.String(),
		"grants_revoked", revoked,
	)
	return nil
}

// Breached returns the subject's breach flag, nil when never triggered.
func (s *Service) Breached(ctx context.Context, subject domain.Principal) (*BreachFlag, error) {
	flag, err := s.store.BreachFlag(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load breach flag")
	}
	return flag, nil
}

// RecordPhase appends one entry to the subject's OODA decision trail.
// Phases are independent; callers interpret the trail.
func (s *Service) RecordPhase(ctx context.Context, subject domain.Principal, phase OODAPhase, payloadHash string) error {
	if !phase.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid ooda phase")
	}
	entry := &OODAEntry{
		ID:          uuid.New(),
		Subject:     subject,
		Phase:       phase,
		PayloadHash: payloadHash,
		RecordedAt:  s.clock(),
	}
	if err := s.store.AppendOODA(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record ooda entry")
	}
	return nil
}

func (s *Service) Observe(ctx context.Context, subject domain.Principal, payloadHash string) error {
	return s.RecordPhase(ctx, subject, PhaseObserve, payloadHash)
}

func (s *Service) Orient(ctx context.Context, subject domain.Principal, payloadHash string) error {
	return s.RecordPhase(ctx, subject, PhaseOrient, payloadHash)
}

func (s *Service) Decide(ctx context.Context, subject domain.Principal, payloadHash string) error {
	return s.RecordPhase(ctx, subject, PhaseDecide, payloadHash)
}

func (s *Service) Act(ctx context.Context, subject domain.Principal, payloadHash string) error {
	return s.RecordPhase(ctx, subject, PhaseAct, payloadHash)
}

// DecisionTrail returns the subject's OODA entries in recorded order.
func (s *Service) DecisionTrail(ctx context.Context, subject domain.Principal) ([]OODAEntry, error) {
	return s.store.ListOODA(ctx, subject)
}

func (s *Service) audit(ctx context.Context, subject domain.Principal, actionTypeID, dataHash string, extra map[string]string) error {
	if s.auditSink == nil {
		return nil
	}
	// Errors propagate so the surrounding transition aborts rather than
	// letting state and audit diverge.
	if _, err := s.auditSink.CreateEntry(ctx, subject, domain.SystemCore, actionTypeID, dataHash, extra); err != nil {
		return fmt.Errorf("audit entry for %s: %w", actionTypeID, err)
	}
	return nil
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
