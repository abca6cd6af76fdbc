package testutil

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stxkxs/ttr/internal/config"
	"github.com/stxkxs/ttr/internal/event"
	"github.com/stxkxs/ttr/internal/runner"
	"github.com/stxkxs/ttr/internal/state"
	"github.com/stxkxs/ttr/internal/telemetry"
)

// SampleLog is a two-agent event log whose report is 330s and 345s.
const SampleLog = `AGENT,TIME,STATE
Agent1,09:00:00,Login
Agent1,09:05:30,Ready
Agent2,09:15:00,Login
Agent2,09:20:45,Ready
`

// TestHarness provides everything needed for integration tests:
// config, history, events, metrics, a runner, and assertion helpers.
type TestHarness struct {
	T        *testing.T
	Config   *config.Config
	History  *state.Manager
	EventBus *event.Bus
	Metrics  *telemetry.Metrics
	Logger   *telemetry.Logger
	Runner   *runner.Runner

	mu     sync.Mutex
	events []event.Event // captured events
}

// NewTestHarness creates a harness backed by in-memory history.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()
	history, err := state.NewManager("memory", "")
	if err != nil {
		t.Fatal(err)
	}
	return newHarness(t, history)
}

// NewSQLiteHarness creates a harness backed by a sqlite file at path.
func NewSQLiteHarness(t *testing.T, path string) *TestHarness {
	t.Helper()
	history, err := state.NewManager("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	return newHarness(t, history)
}

func newHarness(t *testing.T, history *state.Manager) *TestHarness {
	t.Helper()
	t.Cleanup(func() { history.Close() })

	logger := TestLogger()
	bus := event.NewBus(logger)

	h := &TestHarness{
		T:        t,
		Config:   TestConfig(),
		History:  history,
		EventBus: bus,
		Metrics:  telemetry.NewMetrics(),
		Logger:   logger,
	}

	// Capture events via a hook
	bus.Register(&eventCapture{harness: h})

	h.Runner = runner.New(runner.Options{
		History: history,
		Bus:     bus,
		Metrics: h.Metrics,
		Logger:  logger,
	})
	return h
}

// Events returns a copy of the captured events.
func (h *TestHarness) Events() []event.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]event.Event, len(h.events))
	copy(out, h.events)
	return out
}

// AssertEventEmitted checks that an event with the given type was emitted.
func (h *TestHarness) AssertEventEmitted(eventType event.EventType) {
	h.T.Helper()
	if h.EventCount(eventType) == 0 {
		h.T.Errorf("expected event %q to be emitted", eventType)
	}
}

// AssertNoEvent checks that an event type was NOT emitted.
func (h *TestHarness) AssertNoEvent(eventType event.EventType) {
	h.T.Helper()
	if h.EventCount(eventType) > 0 {
		h.T.Errorf("expected event %q NOT to be emitted, but it was", eventType)
	}
}

// EventCount returns the number of events with the given type.
func (h *TestHarness) EventCount(eventType event.EventType) int {
	count := 0
	for _, e := range h.Events() {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

// WriteLog writes content to name under a fresh temp dir and returns the path.
func (h *TestHarness) WriteLog(name, content string) string {
	h.T.Helper()
	path := filepath.Join(h.T.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		h.T.Fatal(err)
	}
	return path
}

// eventCapture is a blocking hook that records events synchronously.
type eventCapture struct {
	harness *TestHarness
}

func (c *eventCapture) Name() string                 { return "test-capture" }
func (c *eventCapture) Matches(event.EventType) bool { return true } // match all
func (c *eventCapture) IsBlocking() bool             { return true } // sync for tests

func (c *eventCapture) Handle(ev event.Event) error {
	c.harness.mu.Lock()
	defer c.harness.mu.Unlock()
	c.harness.events = append(c.harness.events, ev)
	return nil
}

// TestLogger returns a logger that discards output.
func TestLogger() *telemetry.Logger {
	return telemetry.NewLoggerWithOptions(telemetry.LoggerOptions{Level: "debug", Output: io.Discard})
}

// TestConfig returns a config suitable for tests: in-memory history and no hooks.
func TestConfig() *config.Config {
	return &config.Config{
		Name: "test",
		Input: config.InputConfig{
			Path:      "agent-details.csv",
			Delimiter: ",",
		},
		Output:  config.OutputConfig{Format: "text"},
		Logging: config.LoggingConfig{Level: "debug", Format: "text"},
		History: config.HistoryConfig{Driver: "memory"},
		Server:  config.ServerConfig{Host: "localhost", Port: 8080, MaxUploadMB: 1},
	}
}
