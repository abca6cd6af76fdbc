package event

import "time"

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Report lifecycle
	ReportStarted   EventType = "report.started"
	ReportCompleted EventType = "report.completed"
	ReportFailed    EventType = "report.failed"

	// History
	HistoryPruned EventType = "history.pruned"
)

// Known returns every event type hooks may subscribe to.
func Known() []EventType {
	return []EventType{ReportStarted, ReportCompleted, ReportFailed, HistoryPruned}
}

// Event carries data about a lifecycle occurrence.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(t EventType, data map[string]interface{}) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}
}
