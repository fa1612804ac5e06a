package audit

import (
	"context"
	"sync"

	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemoryStore keeps the trail as per-subject slices. Entries are value
// types; append-only by construction.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[domain.Principal][]Entry
	total   uint64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[domain.Principal][]Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trail := s.entries[entry.Subject]
	if uint64(len(trail))+1 != entry.Sequence {
		return sentinel.ErrConflict
	}
	s.entries[entry.Subject] = append(trail, *entry)
	s.total++
	return nil
}

func (s *InMemoryStore) LastSequence(_ context.Context, subject domain.Principal) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.entries[subject])), nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject domain.Principal) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry{}, s.entries[subject]...), nil
}

func (s *InMemoryStore) CountBySubject(_ context.Context, subject domain.Principal) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.entries[subject])), nil
}

func (s *InMemoryStore) Stats(_ context.Context) (*Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &Statistics{
		TotalEntries: s.total,
		Subjects:     len(s.entries),
		BySystemType: make(map[domain.SystemType]uint64),
	}
	for _, trail := range s.entries {
		for _, entry := range trail {
			stats.BySystemType[entry.SystemType]++
		}
	}
	return stats, nil
}

// InMemoryRegistry stores action types for tests and single-process runs.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	types map[string]ActionType
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{types: make(map[string]ActionType)}
}

func (r *InMemoryRegistry) CreateActionType(_ context.Context, at *ActionType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[at.ID]; exists {
		return sentinel.ErrConflict
	}
	r.types[at.ID] = *at
	return nil
}

func (r *InMemoryRegistry) FindActionType(_ context.Context, id string) (*ActionType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	at, ok := r.types[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &at, nil
}
