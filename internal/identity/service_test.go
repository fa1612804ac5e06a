package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

const registrar = domain.Principal("registrar-1")

type IdentityServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	service *Service
	ctx     context.Context
	now     time.Time

	alice domain.Principal
}

func (s *IdentityServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.service = New(s.store, []domain.Principal{registrar},
		WithClock(func() time.Time { return s.now }),
	)
	s.ctx = context.Background()
	s.alice = domain.Principal("alice")
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) create(principal domain.Principal) *Identity {
	ident, err := s.service.CreateIdentity(s.ctx, principal, principal, "ipfs://"+principal.String(), nil)
	s.Require().NoError(err)
	return ident
}

func (s *IdentityServiceSuite) TestCreateIdentity() {
	s.Run("creates active with zero nonce", func() {
		ident := s.create(s.alice)
		s.Equal(StatusActive, ident.Status)
		s.Zero(ident.Nonce)
		s.Equal(s.now, ident.CreatedAt)
	})

	s.Run("second create fails with AlreadyExists", func() {
		_, err := s.service.CreateIdentity(s.ctx, s.alice, s.alice, "ptr", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyExists))
	})

	s.Run("registrar may create on behalf", func() {
		_, err := s.service.CreateIdentity(s.ctx, registrar, domain.Principal("bob"), "ptr", nil)
		s.NoError(err)
	})

	s.Run("strangers may not create for others", func() {
		_, err := s.service.CreateIdentity(s.ctx, s.alice, domain.Principal("carol"), "ptr", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects malformed public key", func() {
		_, err := s.service.CreateIdentity(s.ctx, domain.Principal("dave"), domain.Principal("dave"), "ptr", []byte{1, 2, 3})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *IdentityServiceSuite) TestSystemLinks() {
	s.create(s.alice)

	s.Run("links once per system type", func() {
		s.Require().NoError(s.service.LinkSystemIdentity(s.ctx, s.alice, s.alice, domain.SystemClinical, "mrn-1"))
		err := s.service.LinkSystemIdentity(s.ctx, s.alice, s.alice, domain.SystemClinical, "mrn-2")
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicate))
	})

	s.Run("different system types coexist", func() {
		s.NoError(s.service.LinkSystemIdentity(s.ctx, s.alice, s.alice, domain.SystemBiofeedback, "bf-1"))
	})

	s.Run("requires active status", func() {
		s.Require().NoError(s.service.Suspend(s.ctx, registrar, s.alice))
		err := s.service.LinkSystemIdentity(s.ctx, s.alice, s.alice, domain.SystemGeographic, "geo-1")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Require().NoError(s.service.Reactivate(s.ctx, registrar, s.alice))
	})
}

func (s *IdentityServiceSuite) TestCredentials() {
	s.create(s.alice)
	expiry := s.now.Add(24 * time.Hour)

	s.Run("issues and validates", func() {
		s.Require().NoError(s.service.IssueCredential(s.ctx, s.alice, s.alice, "cred-1", "issuer-a", domain.SystemClinical, expiry))
		ok, err := s.service.HasValidCredential(s.ctx, s.alice, "cred-1")
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("duplicate hash rejected", func() {
		err := s.service.IssueCredential(s.ctx, s.alice, s.alice, "cred-1", "issuer-b", domain.SystemClinical, expiry)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicate))
	})

	s.Run("expiry invalidates lazily", func() {
		s.now = s.now.Add(25 * time.Hour)
		ok, err := s.service.HasValidCredential(s.ctx, s.alice, "cred-1")
		s.Require().NoError(err)
		s.False(ok)
		s.now = s.now.Add(-25 * time.Hour)
	})

	s.Run("revocation invalidates", func() {
		s.Require().NoError(s.service.IssueCredential(s.ctx, s.alice, s.alice, "cred-2", "issuer-a", domain.SystemClinical, expiry))
		s.Require().NoError(s.service.RevokeCredential(s.ctx, s.alice, s.alice, "cred-2"))
		ok, err := s.service.HasValidCredential(s.ctx, s.alice, "cred-2")
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("unknown hash is simply invalid", func() {
		ok, err := s.service.HasValidCredential(s.ctx, s.alice, "no-such")
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("expiry already past rejected at issue", func() {
		err := s.service.IssueCredential(s.ctx, s.alice, s.alice, "cred-3", "issuer-a", domain.SystemClinical, s.now.Add(-time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	})
}

func (s *IdentityServiceSuite) TestDeadMansSwitch() {
	s.create(s.alice)

	s.Run("only the subject configures", func() {
		err := s.service.ConfigureDeadMansSwitch(s.ctx, registrar, s.alice, 30, domain.Principal("heir"))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("beneficiary must differ from subject", func() {
		err := s.service.ConfigureDeadMansSwitch(s.ctx, s.alice, s.alice, 30, s.alice)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("interval must be positive", func() {
		err := s.service.ConfigureDeadMansSwitch(s.ctx, s.alice, s.alice, 0, domain.Principal("heir"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("elapses only past the interval", func() {
		s.Require().NoError(s.service.ConfigureDeadMansSwitch(s.ctx, s.alice, s.alice, 30, domain.Principal("heir")))

		s.now = s.now.Add(29 * 24 * time.Hour)
		due, err := s.service.CheckEstateMode(s.ctx, s.alice)
		s.Require().NoError(err)
		s.False(due)

		s.now = s.now.Add(2 * 24 * time.Hour)
		due, err = s.service.CheckEstateMode(s.ctx, s.alice)
		s.Require().NoError(err)
		s.True(due)
	})

	s.Run("activity resets the window", func() {
		s.Require().NoError(s.service.RecordActivity(s.ctx, s.alice, s.alice))
		due, err := s.service.CheckEstateMode(s.ctx, s.alice)
		s.Require().NoError(err)
		s.False(due)
	})

	s.Run("check never mutates", func() {
		before, err := s.service.GetProfile(s.ctx, s.alice)
		s.Require().NoError(err)
		_, err = s.service.CheckEstateMode(s.ctx, s.alice)
		s.Require().NoError(err)
		after, err := s.service.GetProfile(s.ctx, s.alice)
		s.Require().NoError(err)
		s.Equal(before, after)
	})
}

func (s *IdentityServiceSuite) TestEstateTrigger() {
	s.create(s.alice)
	heir := domain.Principal("heir")
	s.Require().NoError(s.service.ConfigureDeadMansSwitch(s.ctx, s.alice, s.alice, 30, heir))

	s.Run("rejected before the interval elapses", func() {
		err := s.service.TriggerEstateMode(s.ctx, registrar, s.alice)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("only a registrar may trigger", func() {
		s.now = s.now.Add(31 * 24 * time.Hour)
		err := s.service.TriggerEstateMode(s.ctx, heir, s.alice)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("flips status and reassigns control", func() {
		s.Require().NoError(s.service.TriggerEstateMode(s.ctx, registrar, s.alice))

		status, err := s.service.Status(s.ctx, s.alice)
		s.Require().NoError(err)
		s.Equal(StatusEstateMode, status)

		// The delegate now passes the subject capability gate.
		s.NoError(s.service.Authorize(s.ctx, heir, s.alice, CapSubject))
	})

	s.Run("second trigger is rejected", func() {
		err := s.service.TriggerEstateMode(s.ctx, registrar, s.alice)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *IdentityServiceSuite) TestRelayers() {
	s.create(s.alice)
	relayer := domain.Principal("relayer-1")

	s.Run("authorization is registrar gated", func() {
		_, err := s.service.AuthorizeRelayer(s.ctx, s.alice, s.alice, relayer, true)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("enabling returns a secret verifiable once stored", func() {
		secret, err := s.service.AuthorizeRelayer(s.ctx, registrar, s.alice, relayer, true)
		s.Require().NoError(err)
		s.Require().NotEmpty(secret)

		s.NoError(s.service.VerifyRelayerSecret(s.ctx, s.alice, relayer, secret))
		err = s.service.VerifyRelayerSecret(s.ctx, s.alice, relayer, "wrong")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("authorized relayer may record activity", func() {
		s.Require().NoError(s.service.ConfigureDeadMansSwitch(s.ctx, s.alice, s.alice, 30, domain.Principal("heir")))
		s.NoError(s.service.RecordActivity(s.ctx, relayer, s.alice))
	})

	s.Run("disabling revokes the capability", func() {
		_, err := s.service.AuthorizeRelayer(s.ctx, registrar, s.alice, relayer, false)
		s.Require().NoError(err)
		err = s.service.RecordActivity(s.ctx, relayer, s.alice)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *IdentityServiceSuite) TestNonceBoundary() {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	_, err = s.service.CreateIdentity(s.ctx, s.alice, s.alice, "ptr", pub)
	s.Require().NoError(err)

	message := []byte("identity.activity\nalice\n1\n")
	sig := ed25519.Sign(priv, message)

	s.Run("verify alone never advances the nonce", func() {
		s.Require().NoError(s.service.VerifyDelegated(s.ctx, s.alice, message, 1, sig))
		profile, err := s.service.GetProfile(s.ctx, s.alice)
		s.Require().NoError(err)
		s.Zero(profile.Nonce)
	})

	s.Run("consume advances", func() {
		s.Require().NoError(s.service.ConsumeNonce(s.ctx, s.alice, 1))
		profile, err := s.service.GetProfile(s.ctx, s.alice)
		s.Require().NoError(err)
		s.Equal(uint64(1), profile.Nonce)
	})

	s.Run("reused nonce is a replay", func() {
		err := s.service.VerifyDelegated(s.ctx, s.alice, message, 1, sig)
		s.True(dErrors.HasCode(err, dErrors.CodeReplayRejected))
		err = s.service.ConsumeNonce(s.ctx, s.alice, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeReplayRejected))
	})

	s.Run("bad signature never passes", func() {
		bad := ed25519.Sign(priv, []byte("other message"))
		err := s.service.VerifyDelegated(s.ctx, s.alice, message, 5, bad)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		profile, err := s.service.GetProfile(s.ctx, s.alice)
		s.Require().NoError(err)
		s.Equal(uint64(1), profile.Nonce)
	})

	s.Run("identity without key rejects delegation", func() {
		bob := s.create(domain.Principal("bob2"))
		err := s.service.VerifyDelegated(s.ctx, bob.Principal, message, 1, sig)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
