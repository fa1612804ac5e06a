package validator

import (
	"context"
	"sync"

	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemoryStore keeps validators in maps keyed by principal and nodeId.
type InMemoryStore struct {
	mu          sync.RWMutex
	byPrincipal map[domain.Principal]Validator
	byNodeID    map[string]domain.Principal
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byPrincipal: make(map[domain.Principal]Validator),
		byNodeID:    make(map[string]domain.Principal),
	}
}

func (s *InMemoryStore) Create(_ context.Context, v *Validator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byPrincipal[v.Principal]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byNodeID[v.NodeID]; exists {
		return sentinel.ErrConflict
	}
	s.byPrincipal[v.Principal] = *v
	s.byNodeID[v.NodeID] = v.Principal
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, principal domain.Principal) (*Validator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byPrincipal[principal]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &v, nil
}

func (s *InMemoryStore) FindByNodeID(_ context.Context, nodeID string) (*Validator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	principal, ok := s.byNodeID[nodeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	v := s.byPrincipal[principal]
	return &v, nil
}

func (s *InMemoryStore) Update(_ context.Context, v *Validator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPrincipal[v.Principal]; !ok {
		return sentinel.ErrNotFound
	}
	s.byPrincipal[v.Principal] = *v
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]Validator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	validators := make([]Validator, 0, len(s.byPrincipal))
	for _, v := range s.byPrincipal {
		validators = append(validators, v)
	}
	return validators, nil
}
