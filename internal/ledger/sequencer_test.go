package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"custodia/internal/access"
	"custodia/internal/audit"
	"custodia/internal/identity"
	"custodia/internal/validator"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/tx"
)

const testRegistrar = domain.Principal("registrar-1")

type core struct {
	seq        *Sequencer
	log        *InMemoryLog
	identities *identity.Service
	access     *access.Service
	audits     *audit.Service
	validators *validator.Service
	clock      *CommandClock
}

func newCore(t *testing.T, log *InMemoryLog) *core {
	t.Helper()
	clock := NewCommandClock()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	identities := identity.New(identity.NewInMemoryStore(), []domain.Principal{testRegistrar},
		identity.WithClock(clock.Now), identity.WithLogger(quiet))
	audits := audit.New(audit.NewInMemoryStore(), audit.NewInMemoryRegistry(), identities,
		audit.WithClock(clock.Now), audit.WithLogger(quiet))
	identities.SetAuditSink(audits)
	accessSvc := access.New(access.NewInMemoryStore(), identities,
		access.WithAuditSink(audits), access.WithClock(clock.Now), access.WithLogger(quiet))
	validators := validator.New(validator.NewInMemoryStore(), identities,
		validator.Config{MinStake: 1.0, Staleness: 5 * time.Minute},
		validator.WithAuditSink(audits), validator.WithClock(clock.Now), validator.WithLogger(quiet))

	require.NoError(t, audits.RegisterCoreActionTypes(context.Background()))

	dispatcher := NewDispatcher(identities, accessSvc, audits, validators)
	seq := NewSequencer(log, tx.NopRunner{}, dispatcher, clock, WithLogger(quiet))
	return &core{
		seq:        seq,
		log:        log,
		identities: identities,
		access:     accessSvc,
		audits:     audits,
		validators: validators,
		clock:      clock,
	}
}

func startCore(t *testing.T) *core {
	t.Helper()
	c := newCore(t, NewInMemoryLog())
	runCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = c.seq.Run(runCtx) }()
	return c
}

func (c *core) submit(t *testing.T, kind Kind, subject, caller domain.Principal, at time.Time, payload any) (any, error) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.seq.Submit(ctx, &Command{
		Kind:        kind,
		Subject:     subject,
		Caller:      caller,
		Payload:     raw,
		SubmittedAt: at,
	})
}

func (c *core) mustSubmit(t *testing.T, kind Kind, subject, caller domain.Principal, at time.Time, payload any) any {
	t.Helper()
	value, err := c.submit(t, kind, subject, caller, at, payload)
	require.NoError(t, err)
	return value
}

func TestAccessLifecycleScenario(t *testing.T) {
	c := startCore(t)
	now := time.Now().UTC()
	p1 := domain.Principal("P1")
	p2 := domain.Principal("P2")
	ctx := context.Background()

	c.mustSubmit(t, KindCreateIdentity, p1, p1, now, CreateIdentityPayload{DataPointer: "ipfs://p1"})

	_, err := c.submit(t, KindCreateIdentity, p1, p1, now, CreateIdentityPayload{DataPointer: "ipfs://p1"})
	require.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyExists))

	c.mustSubmit(t, KindRequestAccess, p1, p2, now, RequestAccessPayload{
		Grantee: "P2", Scope: "clinical", Purpose: "treatment",
	})
	c.mustSubmit(t, KindGrantAccess, p1, p1, now, GrantAccessPayload{
		Grantee: "P2", Scope: "clinical", DurationSeconds: 86400, DataScope: "full-record",
	})

	ok, err := c.access.HasAccess(ctx, p1, p2, domain.ScopeClinical)
	require.NoError(t, err)
	require.True(t, ok)

	c.mustSubmit(t, KindTriggerBreach, p1, p1, now, TriggerBreachPayload{Reason: "credential leak"})

	ok, err = c.access.HasAccess(ctx, p1, p2, domain.ScopeClinical)
	require.NoError(t, err)
	require.False(t, ok)

	flag, err := c.access.Breached(ctx, p1)
	require.NoError(t, err)
	require.NotNil(t, flag)
	require.True(t, flag.Active)

	// Grant and breach both audited, numbered gap-free from 1.
	entries, err := c.audits.ListBySubject(ctx, p1)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for i, entry := range entries {
		require.Equal(t, uint64(i+1), entry.Sequence)
	}
}

func TestValidatorStalenessScenario(t *testing.T) {
	c := startCore(t)
	ctx := context.Background()
	v1 := domain.Principal("V1")
	now := time.Now().UTC()

	c.mustSubmit(t, KindCreateIdentity, v1, v1, now.Add(-time.Hour), CreateIdentityPayload{DataPointer: "ptr"})
	c.mustSubmit(t, KindRegisterValidator, v1, v1, now.Add(-10*time.Minute), RegisterValidatorPayload{
		NodeID: "node1", EndpointHash: "ep1", Stake: 1.0,
	})

	// Registered ten minutes ago and silent since: degraded without any call.
	healthy, err := c.validators.IsValidatorHealthy(ctx, v1)
	require.NoError(t, err)
	require.False(t, healthy)

	c.mustSubmit(t, KindSubmitHealthCheck, v1, v1, now, SubmitHealthCheckPayload{
		StatusHash: "sh", Healthy: true, LatencyMs: 30,
	})
	healthy, err = c.validators.IsValidatorHealthy(ctx, v1)
	require.NoError(t, err)
	require.True(t, healthy)
}

func TestDeadMansSwitchScenario(t *testing.T) {
	c := startCore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	lapsed := domain.Principal("P-lapsed")
	c.mustSubmit(t, KindCreateIdentity, lapsed, lapsed, now.Add(-40*24*time.Hour), CreateIdentityPayload{DataPointer: "ptr"})
	c.mustSubmit(t, KindConfigureSwitch, lapsed, lapsed, now.Add(-31*24*time.Hour), ConfigureSwitchPayload{
		IntervalDays: 30, Beneficiary: "P2",
	})
	due, err := c.identities.CheckEstateMode(ctx, lapsed)
	require.NoError(t, err)
	require.True(t, due)

	recent := domain.Principal("P-recent")
	c.mustSubmit(t, KindCreateIdentity, recent, recent, now.Add(-40*24*time.Hour), CreateIdentityPayload{DataPointer: "ptr"})
	c.mustSubmit(t, KindConfigureSwitch, recent, recent, now.Add(-29*24*time.Hour), ConfigureSwitchPayload{
		IntervalDays: 30, Beneficiary: "P2",
	})
	due, err = c.identities.CheckEstateMode(ctx, recent)
	require.NoError(t, err)
	require.False(t, due)

	// Registrar flips the lapsed identity; the delegate then acts as subject.
	c.mustSubmit(t, KindTriggerEstate, lapsed, testRegistrar, now, nil)
	status, err := c.identities.Status(ctx, lapsed)
	require.NoError(t, err)
	require.Equal(t, identity.StatusEstateMode, status)
}

func TestDelegatedReplaySafety(t *testing.T) {
	c := startCore(t)
	now := time.Now().UTC()
	p9 := domain.Principal("P9")

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	c.mustSubmit(t, KindCreateIdentity, p9, testRegistrar, now, CreateIdentityPayload{
		DataPointer: "ptr", PublicKey: pub,
	})
	// RecordActivity needs a configured switch to refresh.
	c.mustSubmit(t, KindConfigureSwitch, p9, p9, now, ConfigureSwitchPayload{
		IntervalDays: 30, Beneficiary: "P2",
	})

	delegated := func(nonce uint64) *Command {
		cmd := &Command{
			Kind:        KindRecordActivity,
			Subject:     p9,
			Nonce:       nonce,
			SubmittedAt: now,
		}
		cmd.Signature = ed25519.Sign(priv, cmd.SignedBytes())
		return cmd
	}

	ctx := context.Background()
	_, err = c.seq.Submit(ctx, delegated(1))
	require.NoError(t, err)

	// Same nonce again: replay.
	_, err = c.seq.Submit(ctx, delegated(1))
	require.True(t, dErrors.HasCode(err, dErrors.CodeReplayRejected))

	// Lower nonce: still replay; the nonce never decreases.
	_, err = c.seq.Submit(ctx, delegated(0))
	require.True(t, dErrors.HasCode(err, dErrors.CodeReplayRejected))

	// Tampered signature never passes.
	bad := delegated(2)
	bad.Signature[0] ^= 0xff
	_, err = c.seq.Submit(ctx, bad)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	// A fresh strictly-greater nonce is fine.
	_, err = c.seq.Submit(ctx, delegated(2))
	require.NoError(t, err)
}

func TestRejectedDelegatedCommandKeepsNonce(t *testing.T) {
	c := startCore(t)
	now := time.Now().UTC()
	p8 := domain.Principal("P8")
	ctx := context.Background()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	c.mustSubmit(t, KindCreateIdentity, p8, p8, now, CreateIdentityPayload{
		DataPointer: "ptr", PublicKey: pub,
	})

	delegated := func(nonce uint64) *Command {
		cmd := &Command{
			Kind:        KindRecordActivity,
			Subject:     p8,
			Nonce:       nonce,
			SubmittedAt: now,
		}
		cmd.Signature = ed25519.Sign(priv, cmd.SignedBytes())
		return cmd
	}

	// No switch configured, so the inner command is rejected. The nonce must
	// stay where it was: a rejected command mutates nothing.
	_, err = c.seq.Submit(ctx, delegated(7))
	require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	profile, err := c.identities.GetProfile(ctx, p8)
	require.NoError(t, err)
	require.Zero(t, profile.Nonce)

	c.mustSubmit(t, KindConfigureSwitch, p8, p8, now, ConfigureSwitchPayload{
		IntervalDays: 30, Beneficiary: "P2",
	})
	_, err = c.seq.Submit(ctx, delegated(1))
	require.NoError(t, err)

	profile, err = c.identities.GetProfile(ctx, p8)
	require.NoError(t, err)
	require.Equal(t, uint64(1), profile.Nonce)
}

func TestCommandsRequireCallerAuthority(t *testing.T) {
	c := startCore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	v1 := domain.Principal("V1")
	mallory := domain.Principal("mallory")

	c.mustSubmit(t, KindCreateIdentity, v1, v1, now, CreateIdentityPayload{DataPointer: "ptr"})
	c.mustSubmit(t, KindCreateIdentity, mallory, mallory, now, CreateIdentityPayload{DataPointer: "ptr"})
	c.mustSubmit(t, KindRegisterValidator, v1, v1, now, RegisterValidatorPayload{
		NodeID: "node1", EndpointHash: "ep1", Stake: 1.0,
	})
	c.mustSubmit(t, KindSubmitHealthCheck, v1, v1, now, SubmitHealthCheckPayload{
		StatusHash: "sh", Healthy: true, LatencyMs: 30,
	})

	// A health report is a self-report.
	_, err := c.submit(t, KindSubmitHealthCheck, v1, mallory, now, SubmitHealthCheckPayload{
		StatusHash: "sh", Healthy: false,
	})
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	healthy, err := c.validators.IsValidatorHealthy(ctx, v1)
	require.NoError(t, err)
	require.True(t, healthy)

	_, err = c.submit(t, KindRegisterValidator, v1, mallory, now, RegisterValidatorPayload{
		NodeID: "node-m", EndpointHash: "ep-m", Stake: 1.0,
	})
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = c.submit(t, KindCreateAuditEntry, v1, mallory, now, CreateAuditEntryPayload{
		SystemType: "core", ActionTypeID: audit.ActionIdentityCreated, DataHash: "h",
	})
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = c.submit(t, KindRecordOODA, v1, mallory, now, RecordOODAPayload{
		Phase: "observe", PayloadHash: "h",
	})
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestRejectedCommandsLeaveNoTrace(t *testing.T) {
	c := startCore(t)
	now := time.Now().UTC()
	p1 := domain.Principal("P1")

	c.mustSubmit(t, KindCreateIdentity, p1, p1, now, CreateIdentityPayload{DataPointer: "ptr"})
	before := c.log.Len()

	_, err := c.submit(t, KindGrantAccess, p1, p1, now, GrantAccessPayload{
		Grantee: "P2", Scope: "clinical", DurationSeconds: 60,
	})
	require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	require.Equal(t, before, c.log.Len())

	_, err = c.submit(t, Kind("no.such.kind"), p1, p1, now, nil)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	require.Equal(t, before, c.log.Len())
}

func TestReplayReproducesState(t *testing.T) {
	c := startCore(t)
	now := time.Now().UTC()
	p1 := domain.Principal("P1")
	p2 := domain.Principal("P2")
	ctx := context.Background()

	c.mustSubmit(t, KindCreateIdentity, p1, p1, now, CreateIdentityPayload{DataPointer: "ipfs://p1"})
	c.mustSubmit(t, KindLinkSystem, p1, p1, now, LinkSystemPayload{SystemType: "clinical", ExternalID: "mrn-77"})
	c.mustSubmit(t, KindRequestAccess, p1, p2, now, RequestAccessPayload{Grantee: "P2", Scope: "clinical", Purpose: "care"})
	c.mustSubmit(t, KindGrantAccess, p1, p1, now, GrantAccessPayload{Grantee: "P2", Scope: "clinical", DurationSeconds: 3600})
	c.mustSubmit(t, KindRecordOODA, p1, p1, now, RecordOODAPayload{Phase: "observe", PayloadHash: "h1"})

	// Rebuild everything from the same log against empty state.
	replica := newCore(t, c.log)
	require.NoError(t, replica.seq.Replay(ctx))

	origProfile, err := c.identities.GetProfile(ctx, p1)
	require.NoError(t, err)
	replProfile, err := replica.identities.GetProfile(ctx, p1)
	require.NoError(t, err)
	require.Equal(t, origProfile.Status, replProfile.Status)
	require.Equal(t, origProfile.Nonce, replProfile.Nonce)
	require.Equal(t, origProfile.SystemLinks, replProfile.SystemLinks)
	require.Equal(t, origProfile.CreatedAt, replProfile.CreatedAt)

	origGrants, err := c.access.ListGrants(ctx, p1)
	require.NoError(t, err)
	replGrants, err := replica.access.ListGrants(ctx, p1)
	require.NoError(t, err)
	require.ElementsMatch(t, origGrants, replGrants)

	origTrail, err := c.audits.ListBySubject(ctx, p1)
	require.NoError(t, err)
	replTrail, err := replica.audits.ListBySubject(ctx, p1)
	require.NoError(t, err)
	require.Equal(t, origTrail, replTrail)
}
