package state

import (
	"sort"
	"sync"
)

// MemoryStore implements an in-memory run store
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]*Run),
	}
}

// SaveRun saves a run
func (s *MemoryStore) SaveRun(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

// GetRun retrieves a run
func (s *MemoryStore) GetRun(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if run, ok := s.runs[id]; ok {
		cp := *run
		return &cp, nil
	}
	return nil, runNotFound(id)
}

// ListRuns lists recent runs, newest first. A non-positive limit lists all.
func (s *MemoryStore) ListRuns(limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedLocked(limit), nil
}

func (s *MemoryStore) sortedLocked(limit int) []*Run {
	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		cp := *run
		runs = append(runs, &cp)
	}

	// Sort by start time descending
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs
}

// DeleteRun deletes a run
func (s *MemoryStore) DeleteRun(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return runNotFound(id)
	}
	delete(s.runs, id)
	return nil
}

// PruneRuns keeps the newest keep runs and deletes the rest.
func (s *MemoryStore) PruneRuns(keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.sortedLocked(0)
	if len(all) <= keep {
		return 0, nil
	}
	for _, run := range all[keep:] {
		delete(s.runs, run.ID)
	}
	return len(all) - keep, nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}
