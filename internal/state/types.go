package state

import (
	"time"

	"github.com/stxkxs/ttr/internal/aggregate"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run records one analysis of an event log.
type Run struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"` // file path or upload name
	Status      string            `json:"status"` // running, completed, failed
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at,omitempty"`
	Error       string            `json:"error,omitempty"`
	ErrorCode   string            `json:"error_code,omitempty"`
	Result      *aggregate.Result `json:"result,omitempty"`
}

// NewRun creates a new run
func NewRun(id, source string) *Run {
	return &Run{
		ID:        id,
		Source:    source,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// RowCount returns the number of report rows, or 0 for runs without a result.
func (r *Run) RowCount() int {
	if r.Result == nil {
		return 0
	}
	return len(r.Result.Rows)
}

// Duration returns how long the run took, or 0 while it is still running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// ShortID returns the first eight characters of the ID for display.
func (r *Run) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}
