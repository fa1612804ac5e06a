package identity

import (
	"context"
	"sync"

	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemoryStore keeps identities in a map. Deep copies on both sides of the
// boundary so callers never alias store-owned state.
type InMemoryStore struct {
	mu         sync.RWMutex
	identities map[domain.Principal]*Identity
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{identities: make(map[domain.Principal]*Identity)}
}

func (s *InMemoryStore) Create(_ context.Context, ident *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.identities[ident.Principal]; exists {
		return sentinel.ErrConflict
	}
	s.identities[ident.Principal] = ident.Clone()
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, principal domain.Principal) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.identities[principal]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return ident.Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, ident *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[ident.Principal]; !ok {
		return sentinel.ErrNotFound
	}
	s.identities[ident.Principal] = ident.Clone()
	return nil
}
