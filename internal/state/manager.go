package state

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stxkxs/ttr/internal/aggregate"
	ttrErrors "github.com/stxkxs/ttr/internal/errors"
)

// Store defines the interface for run history backends
type Store interface {
	SaveRun(run *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)
	DeleteRun(id string) error
	PruneRuns(keep int) (int, error)

	Close() error
}

// Manager records analysis runs. It is safe for concurrent use as long as
// the underlying store is.
type Manager struct {
	store Store
	keep  int
}

// NewManager creates a new history manager
func NewManager(driver, path string) (*Manager, error) {
	var store Store
	var err error

	switch driver {
	case "memory", "":
		store = NewMemoryStore()
	case "sqlite":
		store, err = NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported history driver: %s", driver)
	}

	return &Manager{store: store}, nil
}

// SetRetention limits history to the newest keep runs; 0 keeps everything.
func (m *Manager) SetRetention(keep int) {
	m.keep = keep
}

// Close closes the history manager
func (m *Manager) Close() error {
	return m.store.Close()
}

// Begin creates and stores a new running run for source
func (m *Manager) Begin(source string) (*Run, error) {
	run := NewRun(uuid.New().String(), source)
	if err := m.store.SaveRun(run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}
	return run, nil
}

// Complete marks the run as completed with its result. It returns how many
// old runs retention removed.
func (m *Manager) Complete(run *Run, res aggregate.Result) (int, error) {
	run.Status = StatusCompleted
	run.CompletedAt = time.Now().UTC()
	run.Result = &res

	if err := m.store.SaveRun(run); err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	return m.prune()
}

// Fail marks the run as failed. It returns how many old runs retention
// removed.
func (m *Manager) Fail(run *Run, cause error) (int, error) {
	run.Status = StatusFailed
	run.CompletedAt = time.Now().UTC()
	run.Error = cause.Error()
	run.ErrorCode = ttrErrors.AsCode(cause)

	if err := m.store.SaveRun(run); err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	return m.prune()
}

// Retention returns the configured number of runs to keep; 0 keeps all.
func (m *Manager) Retention() int {
	return m.keep
}

func (m *Manager) prune() (int, error) {
	if m.keep <= 0 {
		return 0, nil
	}
	removed, err := m.store.PruneRuns(m.keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return removed, nil
}

// Get returns a run by ID or by unique ID prefix
func (m *Manager) Get(id string) (*Run, error) {
	run, err := m.store.GetRun(id)
	if err == nil {
		return run, nil
	}
	if ttrErrors.AsCode(err) != ttrErrors.CodeRunNotFound || len(id) < 4 {
		return nil, err
	}

	runs, listErr := m.store.ListRuns(0)
	if listErr != nil {
		return nil, listErr
	}
	var match *Run
	for _, r := range runs {
		if len(r.ID) >= len(id) && r.ID[:len(id)] == id {
			if match != nil {
				return nil, ttrErrors.New(ttrErrors.CodeRunNotFound, fmt.Sprintf("run ID prefix is ambiguous: %s", id)).
					WithSuggestion("Use more characters of the run ID")
			}
			match = r
		}
	}
	if match == nil {
		return nil, err
	}
	return match, nil
}

// List returns recent runs, newest first
func (m *Manager) List(limit int) ([]*Run, error) {
	return m.store.ListRuns(limit)
}

// Delete removes a run
func (m *Manager) Delete(id string) error {
	run, err := m.Get(id)
	if err != nil {
		return err
	}
	return m.store.DeleteRun(run.ID)
}

// Prune keeps the newest keep runs and reports how many were removed
func (m *Manager) Prune(keep int) (int, error) {
	return m.store.PruneRuns(keep)
}

func runNotFound(id string) error {
	return ttrErrors.New(ttrErrors.CodeRunNotFound, fmt.Sprintf("run not found: %s", id)).
		WithSuggestion("Run 'ttr history' to list recorded runs")
}
