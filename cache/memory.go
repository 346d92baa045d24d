package cache

import (
	"context"
	"sync"

	"resource-downloader/resource"
)

// MemoryStore is a Persistence that lives only as long as the process. It backs dry
// runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]resource.InstalledEntry
	// FailWrites makes every WriteEntry return this error when set.
	FailWrites error
	writes     int
}

// NewMemoryStore returns a store seeded with entries.
func NewMemoryStore(entries ...resource.InstalledEntry) *MemoryStore {
	s := &MemoryStore{entries: make(map[string]resource.InstalledEntry)}
	for _, e := range entries {
		s.entries[e.ProjectID] = e
	}
	return s
}

func (s *MemoryStore) ReadAll(_ context.Context) ([]resource.InstalledEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]resource.InstalledEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryStore) WriteEntry(_ context.Context, entry resource.InstalledEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.entries[entry.ProjectID] = entry
	s.writes++
	return nil
}

func (s *MemoryStore) DeleteEntry(_ context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, projectID)
	return nil
}

// Writes returns how many successful writes the store accepted.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
