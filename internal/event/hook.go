package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/stxkxs/ttr/internal/config"
	ttrErrors "github.com/stxkxs/ttr/internal/errors"
)

// Hook processes lifecycle events.
type Hook interface {
	// Name returns the hook's identifier.
	Name() string
	// Matches returns true if the hook should handle this event type.
	Matches(t EventType) bool
	// IsBlocking returns true if the run should wait for this hook.
	IsBlocking() bool
	// Handle processes an event. For blocking hooks, an error fails the run.
	Handle(ev Event) error
}

// baseHook provides shared fields for all hook implementations.
type baseHook struct {
	name     string
	events   []EventType
	blocking bool
}

func (h *baseHook) Name() string     { return h.name }
func (h *baseHook) IsBlocking() bool { return h.blocking }
func (h *baseHook) Matches(t EventType) bool {
	if len(h.events) == 0 {
		return true // match all events if no filter specified
	}
	for _, ev := range h.events {
		if ev == t {
			return true
		}
	}
	return false
}

// ShellHook executes a shell command with event data in environment variables.
//
// Environment variables set:
//   - TTR_EVENT_TYPE: the event type string
//   - TTR_EVENT_JSON: JSON-encoded event
//   - TTR_RUN_ID: the run ID, when the event carries one
type ShellHook struct {
	baseHook
	Command string
	Stdout  io.Writer
	Stderr  io.Writer
}

func NewShellHook(name, command string, events []EventType, blocking bool) *ShellHook {
	return &ShellHook{
		baseHook: baseHook{name: name, events: events, blocking: blocking},
		Command:  command,
		Stdout:   os.Stderr,
		Stderr:   os.Stderr,
	}
}

func (h *ShellHook) Handle(ev Event) error {
	eventJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	cmd := exec.Command("sh", "-c", h.Command)
	cmd.Env = append(os.Environ(),
		"TTR_EVENT_TYPE="+string(ev.Type),
		"TTR_EVENT_JSON="+string(eventJSON),
	)
	if runID, ok := ev.Data["run_id"].(string); ok {
		cmd.Env = append(cmd.Env, "TTR_RUN_ID="+runID)
	}
	cmd.Stdout = h.Stdout
	cmd.Stderr = h.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("shell hook %s failed: %w", h.name, err)
	}
	return nil
}

// WebhookHook sends an HTTP POST with event JSON to a URL. Network errors,
// 429 and 5xx responses are retried with backoff. MaxElapsed caps one
// delivery, retries and backoff included.
type WebhookHook struct {
	baseHook
	URL        string
	Timeout    time.Duration
	MaxElapsed time.Duration
	Retry      RetryConfig
}

func NewWebhookHook(name, url string, events []EventType, blocking bool) *WebhookHook {
	return &WebhookHook{
		baseHook:   baseHook{name: name, events: events, blocking: blocking},
		URL:        url,
		Timeout:    10 * time.Second,
		MaxElapsed: 15 * time.Second,
		Retry:      DefaultRetryConfig(),
	}
}

func (h *WebhookHook) Handle(ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if h.MaxElapsed > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), h.MaxElapsed)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()

	client := &http.Client{Timeout: h.Timeout}
	err = h.Retry.Do(ctx, func() error {
		return h.post(ctx, client, body)
	})
	if err != nil {
		return fmt.Errorf("webhook %s: %w", h.name, err)
	}
	return nil
}

func (h *WebhookHook) post(ctx context.Context, client *http.Client, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &deliveryError{err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return &deliveryError{status: resp.StatusCode}
	}
	return nil
}

// LogHook logs events at the configured level. Always non-blocking.
type LogHook struct {
	baseHook
	logger Logger
	level  string // "debug", "info", "warn"
}

// FullLogger extends Logger with additional log levels for the LogHook.
type FullLogger interface {
	Logger
	Info(msg string, keyvals ...interface{})
	Debug(msg string, keyvals ...interface{})
}

func NewLogHook(name string, events []EventType, logger Logger, level string) *LogHook {
	if level == "" {
		level = "info"
	}
	return &LogHook{
		baseHook: baseHook{name: name, events: events, blocking: false},
		logger:   logger,
		level:    level,
	}
}

func (h *LogHook) Handle(ev Event) error {
	msg := fmt.Sprintf("[event] %s", ev.Type)
	keyvals := make([]interface{}, 0, len(ev.Data)*2+2)
	keyvals = append(keyvals, "event_type", string(ev.Type))
	for k, v := range ev.Data {
		keyvals = append(keyvals, k, v)
	}

	if fl, ok := h.logger.(FullLogger); ok {
		switch h.level {
		case "debug":
			fl.Debug(msg, keyvals...)
		case "warn":
			fl.Warn(msg, keyvals...)
		default:
			fl.Info(msg, keyvals...)
		}
	} else {
		// Logger only guarantees Warn.
		h.logger.Warn(msg, keyvals...)
	}
	return nil
}

// ValidateHooks checks that every hook subscribes only to known event types.
func ValidateHooks(cfg config.HooksConfig) error {
	known := make(map[EventType]bool)
	var names []string
	for _, t := range Known() {
		known[t] = true
		names = append(names, string(t))
	}

	var problems []string
	for _, hc := range cfg.Hooks {
		for _, e := range hc.Events {
			if !known[EventType(e)] {
				problems = append(problems, fmt.Sprintf("hook %s: unknown event %q", hc.Name, e))
			}
		}
	}
	if len(problems) > 0 {
		return ttrErrors.New(ttrErrors.CodeConfigInvalid,
			fmt.Sprintf("config validation failed: %s", strings.Join(problems, "; "))).
			WithSuggestion("Hook events must be one of: " + strings.Join(names, ", "))
	}
	return nil
}

// NewBusFromConfig builds a bus with the configured hooks registered. A
// disabled hooks section yields a bus with no hooks.
func NewBusFromConfig(cfg config.HooksConfig, logger FullLogger) (*Bus, error) {
	bus := NewBus(logger)
	if !cfg.Enabled {
		return bus, nil
	}
	if err := ValidateHooks(cfg); err != nil {
		return nil, err
	}

	for _, hc := range cfg.Hooks {
		events := make([]EventType, 0, len(hc.Events))
		for _, e := range hc.Events {
			events = append(events, EventType(e))
		}

		switch hc.Type {
		case "shell":
			bus.Register(NewShellHook(hc.Name, hc.Command, events, hc.Blocking))
		case "webhook":
			hook := NewWebhookHook(hc.Name, hc.URL, events, hc.Blocking)
			if hc.Retries != nil {
				hook.Retry.MaxRetries = *hc.Retries
			}
			bus.Register(hook)
		case "log":
			bus.Register(NewLogHook(hc.Name, events, logger, hc.Level))
		default:
			return nil, fmt.Errorf("hook %s: unknown type %q", hc.Name, hc.Type)
		}
	}
	return bus, nil
}
