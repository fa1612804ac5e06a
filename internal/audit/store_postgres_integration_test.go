//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/internal/audit"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *audit.PostgresStore
	registry *audit.PostgresRegistry
}

func TestPostgresAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuditSuite))
}

func (s *PostgresAuditSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = audit.NewPostgresStore(s.postgres.DB)
	s.registry = audit.NewPostgresRegistry(s.postgres.DB)
}

func (s *PostgresAuditSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_entries", "action_types"))
}

func entry(subject string, seq uint64) *audit.Entry {
	return &audit.Entry{
		Subject:      domain.Principal(subject),
		Sequence:     seq,
		SystemType:   domain.SystemCore,
		ActionTypeID: audit.ActionIdentityCreated,
		DataHash:     "hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresAuditSuite) TestAppendRejectsDuplicateSequence() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, entry("subject-1", 1)))

	err := s.store.Append(ctx, entry("subject-1", 1))
	s.ErrorIs(err, sentinel.ErrConflict)

	// Same sequence on another subject is fine.
	s.NoError(s.store.Append(ctx, entry("subject-2", 1)))
}

func (s *PostgresAuditSuite) TestListBySubjectOrdersBySequence() {
	ctx := context.Background()
	for seq := uint64(1); seq <= 3; seq++ {
		s.Require().NoError(s.store.Append(ctx, entry("subject-1", seq)))
	}

	entries, err := s.store.ListBySubject(ctx, "subject-1")
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	for i, e := range entries {
		s.Equal(uint64(i+1), e.Sequence)
	}

	last, err := s.store.LastSequence(ctx, "subject-1")
	s.Require().NoError(err)
	s.Equal(uint64(3), last)

	count, err := s.store.CountBySubject(ctx, "subject-1")
	s.Require().NoError(err)
	s.Equal(uint64(3), count)
}

func (s *PostgresAuditSuite) TestExtraRoundtrip() {
	ctx := context.Background()
	e := entry("subject-1", 1)
	e.Extra = map[string]string{"device": "Firefox on Linux", "request_id": "req-1"}
	s.Require().NoError(s.store.Append(ctx, e))

	entries, err := s.store.ListBySubject(ctx, "subject-1")
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("Firefox on Linux", entries[0].Extra["device"])
}

func (s *PostgresAuditSuite) TestStats() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, entry("subject-1", 1)))
	s.Require().NoError(s.store.Append(ctx, entry("subject-1", 2)))
	s.Require().NoError(s.store.Append(ctx, entry("subject-2", 1)))

	stats, err := s.store.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(3), stats.TotalEntries)
	s.Equal(2, stats.Subjects)
	s.Equal(uint64(3), stats.BySystemType[domain.SystemCore])
}

func (s *PostgresAuditSuite) TestRegistryRejectsDuplicateID() {
	ctx := context.Background()
	at := &audit.ActionType{
		ID:            "clinical.visit",
		Label:         "Clinical visit recorded",
		SystemType:    domain.SystemClinical,
		RetentionDays: 365,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.registry.CreateActionType(ctx, at))

	err := s.registry.CreateActionType(ctx, at)
	s.ErrorIs(err, sentinel.ErrConflict)

	got, err := s.registry.FindActionType(ctx, "clinical.visit")
	s.Require().NoError(err)
	s.Equal("Clinical visit recorded", got.Label)

	_, err = s.registry.FindActionType(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
