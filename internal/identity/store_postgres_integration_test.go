//go:build integration

package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/internal/identity"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *identity.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = identity.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "identities"))
}

func newStoredIdentity(principal string) *identity.Identity {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &identity.Identity{
		Principal:   domain.Principal(principal),
		Status:      identity.StatusActive,
		DataPointer: "enc://vault/" + principal,
		SystemLinks: map[domain.SystemType]identity.SystemLink{},
		Credentials: map[string]identity.Credential{},
		Relayers:    map[domain.Principal]identity.RelayerAuth{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *PostgresStoreSuite) TestCreateFindRoundtrip() {
	ctx := context.Background()
	ident := newStoredIdentity("subject-1")
	ident.SystemLinks[domain.SystemClinical] = identity.SystemLink{
		ExternalID: "mrn-42",
		LinkedAt:   ident.CreatedAt,
	}
	ident.Credentials["cred-1"] = identity.Credential{
		Hash:       "cred-1",
		Issuer:     "issuer-1",
		SystemType: domain.SystemClinical,
		Expiry:     ident.CreatedAt.Add(24 * time.Hour),
	}
	ident.Relayers["relay-1"] = identity.RelayerAuth{Allowed: true, SecretHash: "$2a$10$hash"}
	ident.DeadMansSwitch = &identity.DeadMansSwitch{
		IntervalDays:   30,
		Beneficiary:    "heir-1",
		LastActivityAt: ident.CreatedAt,
	}

	s.Require().NoError(s.store.Create(ctx, ident))

	got, err := s.store.Find(ctx, "subject-1")
	s.Require().NoError(err)
	s.Equal(ident.Principal, got.Principal)
	s.Equal(ident.Status, got.Status)
	s.Equal("mrn-42", got.SystemLinks[domain.SystemClinical].ExternalID)
	s.Equal("issuer-1", got.Credentials["cred-1"].Issuer)
	s.True(got.Relayers["relay-1"].Allowed)
	s.Require().NotNil(got.DeadMansSwitch)
	s.Equal(30, got.DeadMansSwitch.IntervalDays)
	s.Equal(domain.Principal("heir-1"), got.DeadMansSwitch.Beneficiary)
}

func (s *PostgresStoreSuite) TestCreateDuplicateConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newStoredIdentity("subject-1")))

	err := s.store.Create(ctx, newStoredIdentity("subject-1"))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindUnknownNotFound() {
	_, err := s.store.Find(context.Background(), "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdatePersistsNonceAndStatus() {
	ctx := context.Background()
	ident := newStoredIdentity("subject-1")
	s.Require().NoError(s.store.Create(ctx, ident))

	ident.Status = identity.StatusSuspended
	ident.Nonce = 7
	ident.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.Update(ctx, ident))

	got, err := s.store.Find(ctx, "subject-1")
	s.Require().NoError(err)
	s.Equal(identity.StatusSuspended, got.Status)
	s.Equal(uint64(7), got.Nonce)
}

func (s *PostgresStoreSuite) TestUpdateUnknownNotFound() {
	err := s.store.Update(context.Background(), newStoredIdentity("ghost"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
