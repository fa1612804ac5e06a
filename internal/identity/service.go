package identity

import (
	"context"
	"crypto/ed25519"
	"errors"
	"log/slog"
	"time"

	"custodia/internal/audit"
	"custodia/internal/platform/metrics"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
	"custodia/pkg/secrets"
)

// Store persists identities. Implementations return sentinel errors; the
// service translates them into coded domain errors.
type Store interface {
	Create(ctx context.Context, ident *Identity) error
	Find(ctx context.Context, principal domain.Principal) (*Identity, error)
	Update(ctx context.Context, ident *Identity) error
}

// AuditSink appends an entry to the subject's audit trail inside the current
// transition. Implemented by the audit service.
type AuditSink interface {
	CreateEntry(ctx context.Context, subject domain.Principal, systemType domain.SystemType, actionTypeID, dataHash string, extra map[string]string) (uint64, error)
}

// Capability names what a caller must be relative to a subject for an
// operation to proceed. Every component consults the same gate instead of
// re-implementing role checks.
type Capability int

const (
	// CapSubject: caller is the subject itself, or the estate delegate
	// once the identity is in EstateMode.
	CapSubject Capability = iota
	// CapRelayer: caller is the subject, the estate delegate, or an
	// authorized relayer.
	CapRelayer
	// CapRegistrar: caller is a configured privileged registrar.
	CapRegistrar
)

// Clock supplies the current instant; injected so time-derived facts are
// testable and replayable.
type Clock func() time.Time

// Service is the identity registry: subject lifecycle, system links,
// credentials, dead-man's-switch, relayer authorization, and the replay
// protection boundary for delegated commands.
type Service struct {
	store      Store
	registrars map[domain.Principal]bool
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

// SetAuditSink binds the sink after construction. The audit service needs
// this service for subject existence checks, so the two are wired in two
// steps.
func (s *Service) SetAuditSink(sink AuditSink) {
	s.auditSink = sink
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// New constructs the identity service. registrars are the privileged
// principals allowed to perform registrar-gated operations.
func New(store Store, registrars []domain.Principal, opts ...Option) *Service {
	s := &Service{
		store:      store,
		registrars: make(map[domain.Principal]bool, len(registrars)),
		logger:     slog.Default(),
		clock:      time.Now,
	}
	for _, r := range registrars {
		s.registrars[r] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateIdentity registers a new subject. Fails with CodeAlreadyExists when
// the principal already has an identity. The public key, when present,
// enables delegated command submission.
func (s *Service) CreateIdentity(ctx context.Context, caller, principal domain.Principal, dataPointer string, publicKey ed25519.PublicKey) (*Identity, error) {
	if caller != principal && !s.registrars[caller] {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the subject or a registrar may create an identity")
	}
	if publicKey != nil && len(publicKey) != ed25519.PublicKeySize {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "public key must be 32 bytes")
	}

	now := s.clock()
	ident := &Identity{
		Principal:   principal,
		Status:      StatusActive,
		DataPointer: dataPointer,
		Nonce:       0,
		PublicKey:   publicKey,
		SystemLinks: make(map[domain.SystemType]SystemLink),
		Credentials: make(map[string]Credential),
		Relayers:    make(map[domain.Principal]RelayerAuth),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, ident); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeAlreadyExists, "identity already exists for principal")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create identity")
	}

	if s.metrics != nil {
		// Gauges move only once the transition commits.
		tx.AfterCommit(ctx, s.metrics.IdentitiesActive.Inc)
	}
	if err := s.audit(ctx, principal, audit.ActionIdentityCreated, dataPointer, nil); err != nil {
		return nil, err
	}
	return ident, nil
}

// LinkSystemIdentity binds an external system identity. Requires Active
// status; fails with CodeDuplicate when the system type is already linked.
func (s *Service) LinkSystemIdentity(ctx context.Context, caller, principal domain.Principal, systemType domain.SystemType, externalID string) error {
	ident, err := s.load(ctx, principal)
	if err != nil {
		return err
	}
	if err := s.requireCapability(ident, caller, CapSubject); err != nil {
		return err
	}
	if ident.Status != StatusActive {
		return dErrors.New(dErrors.CodeInvalidState, "identity is not active")
	}
	if _, exists := ident.SystemLinks[systemType]; exists {
		return dErrors.New(dErrors.CodeDuplicate, "system type already linked")
	}

	ident.SystemLinks[systemType] = SystemLink{ExternalID: externalID, LinkedAt: s.clock()}
	if err := s.save(ctx, ident); err != nil {
		return err
	}
	return s.audit(ctx, principal, audit.ActionSystemLinked, externalID, map[string]string{"system_type": systemType.String()})
}

// IssueCredential records a credential reference. Fails with CodeDuplicate
// when the hash is already present for this identity.
func (s *Service) IssueCredential(ctx context.Context, caller, principal domain.Principal, hash, issuer string, systemType domain.SystemType, expiry time.Time) error {
	if hash == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "credential hash cannot be empty")
	}
	if !expiry.After(s.clock()) {
		return dErrors.New(dErrors.CodeExpired, "credential expiry is already past")
	}
	ident, err := s.load(ctx, principal)
	if err != nil {
		return err
	}
	if err := s.requireCapability(ident, caller, CapSubject); err != nil {
		return err
	}
	if _, exists := ident.Credentials[hash]; exists {
		return dErrors.New(dErrors.CodeDuplicate, "credential hash already present")
	}

	ident.Credentials[hash] = Credential{
		Hash:       hash,
		Issuer:     issuer,
		SystemType: systemType,
		Expiry:     expiry,
	}
	if err := s.save(ctx, ident); err != nil {
		return err
	}
	return s.audit(ctx, principal, audit.ActionCredentialIssued, hash, map[string]string{"issuer": issuer})
}

// RevokeCredential marks an issued credential revoked.
func (s *Service) RevokeCredential(ctx context.Context, caller, principal domain.Principal, hash string) error {
	ident, err := s.load(ctx, principal)
	if err != nil {
		return err
	}
	if err := s.requireCapability(ident, caller, CapSubject); err != nil {
		return err
	}
	cred, ok := ident.Credentials[hash]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	cred.Revoked = true
	ident.Credentials[hash] = cred
	if err := s.save(ctx, ident); err != nil {
		return err
	}
	return s.audit(ctx, principal, audit.ActionCredentialRevoked, hash, nil)
}

// HasValidCredential reports whether hash is present, unrevoked, and not yet
// expired. Pure read.
func (s *Service) HasValidCredential(ctx context.Context, principal domain.Principal, hash string) (bool, error) {
	ident, err := s.load(ctx, principal)
	if err != nil {
		return false, err
	}
	return ident.HasValidCredential(hash, s.clock()), nil
}

// ConfigureDeadMansSwitch sets or overwrites the inactivity switch. Only the
// subject may configure their own switch; lastActivity resets to now.
func (s *Service) ConfigureDeadMansSwitch(ctx context.Context, caller, principal domain.Principal, intervalDays int, beneficiary domain.Principal) error {
	if intervalDays <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "interval must be positive")
	}
	if beneficiary == principal {
		return dErrors.New(dErrors.CodeInvalidInput, "beneficiary cannot be the subject")
	}
	ident, err := s.load(ctx, principal)
	if err != nil {
		return err
	}
	if caller != principal {
		return dErrors.New(dErrors.CodeUnauthorized, "only the subject may configure their switch")
	}

	ident.DeadMansSwitch = &DeadMansSwitch{
		IntervalDays:   intervalDays,
		Beneficiary:    beneficiary,
		LastActivityAt: s.clock(),
	}
	return s.save(ctx, ident)
}

// RecordActivity refreshes the dead-man's-switch activity timestamp. The
// subject or an authorized relayer may call it.
func (s *Service) RecordActivity(ctx context.Context, caller, principal domain.Principal) error {
	ident, err := s.load(ctx, principal)
	if err != nil {
		return err
	}
	if err := s.requireCapability(ident, caller, CapRelayer); err != nil {
		return err
	}
	if ident.DeadMansSwitch == nil {
		return dErrors.New(dErrors.CodeNotFound, "no dead-man's-switch configured")
	}
	ident.DeadMansSwitch.LastActivityAt = s.clock()
	return s.save(ctx, ident)
}

// CheckEstateMode reports whether the switch interval has elapsed. Pure
// query; never mutates state.
func (s *Service) CheckEstateMode(ctx context.Context, principal domain.Principal) (bool, error) {
	ident, err := s.load(ctx, principal)
	if err != nil {
		return false, err
	}
	return ident.EstateDue(s.clock()), nil
}

// TriggerEstateMode is the explicit privileged transition: flips status to
// EstateMode and reassigns control to the configured beneficiary. Rejected
// unless the inactivity interval has actually elapsed.
func (s *Service) TriggerEstateMode(ctx context.Context, caller, principal domain.Principal) error {
	if !s.registrars[caller] {
		return dErrors.New(dErrors.CodeUnauthorized, "estate trigger is a registrar operation")
	}
	ident, err := s.load(ctx, principal)
	if err != nil {
		return err
	}
	if ident.Status == StatusEstateMode || ident.Status == StatusRevoked {
		return dErrors.New(dErrors.CodeInvalidState, "identity is in a terminal status")
	}
	if !ident.EstateDue(s.clock()) {
		return dErrors.New(dErrors.CodeInvalidState, "inactivity interval has not elapsed")
	}

	ident.Status = StatusEstateMode
	ident.EstateDelegate = ident.DeadMansSwitch.Beneficiary
	if err := s.save(ctx, ident); err != nil {
		return err
	}
	if s.metrics != nil {
		tx.AfterCommit(ctx, s.metrics.IdentitiesActive.Dec)
	}
	return s.audit(ctx, principal, audit.ActionEstateTriggered, "", map[string]string{
		"beneficiary": ident.EstateDelegate.String(),
	})
}

// Suspend moves an Active identity to Suspended.
func (s *Service) Suspend(ctx context.Context, caller, principal domain.Principal) error {
	return s.setStatus(ctx, caller, principal, StatusActive, StatusSuspended, audit.ActionIdentitySuspended)
}

// Reactivate moves a Suspended identity back to Active. The only permitted
// backward transition.
func (s *Service) Reactivate(ctx context.Context, caller, principal domain.Principal) error {
	return s.setStatus(ctx, caller, principal, StatusSuspended, StatusActive, audit.ActionIdentityReactivated)
}

func (s *Service) setStatus(ctx context.Context, caller, principal domain.Principal, from, to Status, action string) error {
	if !s.registrars[caller] {
		return dErrors.New(dErrors.CodeUnauthorized, "status change is a registrar operation")
	}
	ident, err := s.load(ctx, principal)
	if err != nil {
		return err
	}
	if ident.Status != from {
		return dErrors.New(dErrors.CodeInvalidState, "identity is not in the required status")
	}
	ident.Status = to
	if err := s.save(ctx, ident); err != nil {
		return err
	}
	if s.metrics != nil {
		if to == StatusActive {
			tx.AfterCommit(ctx, s.metrics.IdentitiesActive.Inc)
		} else {
			tx.AfterCommit(ctx, s.metrics.IdentitiesActive.Dec)
		}
	}
	return s.audit(ctx, principal, action, "", nil)
}

// AuthorizeRelayer toggles whether relayer may submit delegated commands for
// the subject. Registrar-gated. When enabling, a fresh secret is generated
// and returned once; only its bcrypt hash is stored.
func (s *Service) AuthorizeRelayer(ctx context.Context, caller, principal, relayer domain.Principal, allowed bool) (string, error) {
	if !s.registrars[caller] {
		return "", dErrors.New(dErrors.CodeUnauthorized, "relayer authorization is a registrar operation")
	}
	ident, err := s.load(ctx, principal)
	if err != nil {
		return "", err
	}

	auth := RelayerAuth{Allowed: allowed}
	var secret string
	if allowed {
		secret, err = secrets.Generate()
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate relayer secret")
		}
		auth.SecretHash, err = secrets.Hash(secret)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash relayer secret")
		}
	}
	ident.Relayers[relayer] = auth
	if err := s.save(ctx, ident); err != nil {
		return "", err
	}
	return secret, nil
}

// VerifyRelayerSecret checks a presented relayer secret against the stored
// hash. Used by the transport layer when authenticating relayed submissions.
func (s *Service) VerifyRelayerSecret(ctx context.Context, principal, relayer domain.Principal, secret string) error {
	ident, err := s.load(ctx, principal)
	if err != nil {
		return err
	}
	auth, ok := ident.Relayers[relayer]
	if !ok || !auth.Allowed {
		return dErrors.New(dErrors.CodeUnauthorized, "relayer is not authorized for subject")
	}
	return secrets.Verify(secret, auth.SecretHash)
}

// VerifyDelegated is the replay-protection boundary. It validates the
// ed25519 signature over message and rejects any nonce not strictly greater
// than the identity's recorded nonce. Pure check; the nonce advances only
// through ConsumeNonce, after the delegated command itself has applied.
// Every other component assumes commands arrive already authorized.
func (s *Service) VerifyDelegated(ctx context.Context, principal domain.Principal, message []byte, nonce uint64, signature []byte) error {
	ident, err := s.load(ctx, principal)
	if err != nil {
		return err
	}
	if ident.PublicKey == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "identity has no public key for delegation")
	}
	if !ed25519.Verify(ident.PublicKey, message, signature) {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid command signature")
	}
	if nonce <= ident.Nonce {
		return dErrors.New(dErrors.CodeReplayRejected, "nonce is not strictly increasing")
	}
	return nil
}

// ConsumeNonce advances the identity's nonce as the last step of a delegated
// transition. A rejected command never reaches it, so the nonce only moves
// when the command applied.
func (s *Service) ConsumeNonce(ctx context.Context, principal domain.Principal, nonce uint64) error {
	ident, err := s.load(ctx, principal)
	if err != nil {
		return err
	}
	if nonce <= ident.Nonce {
		return dErrors.New(dErrors.CodeReplayRejected, "nonce is not strictly increasing")
	}
	ident.Nonce = nonce
	return s.save(ctx, ident)
}

// GetProfile returns the identity for a principal. Pure read.
func (s *Service) GetProfile(ctx context.Context, principal domain.Principal) (*Identity, error) {
	return s.load(ctx, principal)
}

// Authorize is the shared capability gate. CapSubject also admits the estate
// delegate once the identity is in EstateMode, which is what transfers
// control after the dead-man's-switch fires.
func (s *Service) Authorize(ctx context.Context, caller, subject domain.Principal, capability Capability) error {
	if capability == CapRegistrar {
		if s.registrars[caller] {
			return nil
		}
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not a registrar")
	}
	ident, err := s.load(ctx, subject)
	if err != nil {
		return err
	}
	return s.requireCapability(ident, caller, capability)
}

// Status returns the current lifecycle status of a subject.
func (s *Service) Status(ctx context.Context, principal domain.Principal) (Status, error) {
	ident, err := s.load(ctx, principal)
	if err != nil {
		return "", err
	}
	return ident.Status, nil
}

// Exists reports whether a principal has an identity at all.
func (s *Service) Exists(ctx context.Context, principal domain.Principal) (bool, error) {
	_, err := s.store.Find(ctx, principal)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up identity")
	}
	return true, nil
}

func (s *Service) requireCapability(ident *Identity, caller domain.Principal, capability Capability) error {
	if s.registrars[caller] {
		return nil
	}
	switch capability {
	case CapSubject:
		if caller == ident.Principal && ident.Status != StatusEstateMode {
			return nil
		}
		if ident.Status == StatusEstateMode && caller == ident.EstateDelegate {
			return nil
		}
	case CapRelayer:
		if caller == ident.Principal && ident.Status != StatusEstateMode {
			return nil
		}
		if ident.Status == StatusEstateMode && caller == ident.EstateDelegate {
			return nil
		}
		if ident.RelayerAllowed(caller) {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeUnauthorized, "caller may not act for subject")
}

func (s *Service) load(ctx context.Context, principal domain.Principal) (*Identity, error) {
	ident, err := s.store.Find(ctx, principal)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return ident, nil
}

func (s *Service) save(ctx context.Context, ident *Identity) error {
	ident.UpdatedAt = s.clock()
	if err := s.store.Update(ctx, ident); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist identity")
	}
	return nil
}

// audit appends a core audit entry. Errors propagate so the surrounding
// transition aborts rather than letting state and audit diverge.
func (s *Service) audit(ctx context.Context, subject domain.Principal, actionTypeID, dataHash string, extra map[string]string) error {
	if s.auditSink == nil {
		return nil
	}
	if _, err := s.auditSink.CreateEntry(ctx, subject, domain.SystemCore, actionTypeID, dataHash, extra); err != nil {
		s.logger.ErrorContext(ctx, "audit append failed",
			"subject", subject.String(),
			"action", actionTypeID,
			"error", err,
		)
		return err
	}
	return nil
}
