package access

import (
	"context"
	"sync"

	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

type grantKey struct {
	subject domain.Principal
	grantee domain.Principal
	scope   domain.AccessScope
}

// InMemoryStore holds grants, breach flags, and the OODA trail under one
// mutex, so a breach trigger is observed atomically even without a
// database transaction.
type InMemoryStore struct {
	mu     sync.RWMutex
	grants map[grantKey]Grant
	flags  map[domain.Principal]BreachFlag
	ooda   map[domain.Principal][]OODAEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		grants: make(map[grantKey]Grant),
		flags:  make(map[domain.Principal]BreachFlag),
		ooda:   make(map[domain.Principal][]OODAEntry),
	}
}

func (s *InMemoryStore) UpsertGrant(_ context.Context, grant *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grantKey{grant.Subject, grant.Grantee, grant.Scope}] = *grant
	return nil
}

func (s *InMemoryStore) FindGrant(_ context.Context, subject, grantee domain.Principal, scope domain.AccessScope) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, ok := s.grants[grantKey{subject, grantee, scope}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &grant, nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject domain.Principal) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var grants []Grant
	for key, grant := range s.grants {
		if key.subject == subject {
			grants = append(grants, grant)
		}
	}
	return grants, nil
}

func (s *InMemoryStore) RevokeGrantee(_ context.Context, subject, grantee domain.Principal) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := 0
	for key, grant := range s.grants {
		if key.subject == subject && key.grantee == grantee && grant.State != GrantRevoked {
			grant.State = GrantRevoked
			s.grants[key] = grant
			revoked++
		}
	}
	return revoked, nil
}

func (s *InMemoryStore) BreachFlag(_ context.Context, subject domain.Principal) (*BreachFlag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flag, ok := s.flags[subject]
	if !ok {
		return nil, nil
	}
	return &flag, nil
}

func (s *InMemoryStore) TriggerBreach(_ context.Context, subject domain.Principal, flag *BreachFlag) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := 0
	for key, grant := range s.grants {
		if key.subject == subject && grant.State != GrantRevoked {
			grant.State = GrantRevoked
			s.grants[key] = grant
			revoked++
		}
	}
	s.flags[subject] = *flag
	return revoked, nil
}

func (s *InMemoryStore) AppendOODA(_ context.Context, entry *OODAEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ooda[entry.Subject] = append(s.ooda[entry.Subject], *entry)
	return nil
}

func (s *InMemoryStore) ListOODA(_ context.Context, subject domain.Principal) ([]OODAEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]OODAEntry{}, s.ooda[subject]...), nil
}
