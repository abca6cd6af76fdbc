package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"

	"github.com/stxkxs/ttr/internal/config"
	"github.com/stxkxs/ttr/internal/event"
	"github.com/stxkxs/ttr/internal/loader"
	"github.com/stxkxs/ttr/internal/runner"
	"github.com/stxkxs/ttr/internal/state"
	"github.com/stxkxs/ttr/internal/telemetry"
)

var (
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	hintStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	headStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// loadConfig reads the project config from --config or ./ttr.yaml and
// applies environment overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load(".")
	}
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if err := event.ValidateHooks(cfg.Hooks); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets TTR_* environment variables override file settings,
// e.g. TTR_HISTORY_DRIVER=memory or TTR_OUTPUT_FORMAT=json. It uses its own
// viper instance so only the environment is consulted, never the raw file.
func applyEnvOverrides(cfg *config.Config) {
	env := viper.New()
	env.SetEnvPrefix("TTR")
	env.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	env.AutomaticEnv()

	set := func(key string, dst *string) {
		if v := env.GetString(key); v != "" {
			*dst = v
		}
	}
	set("input.path", &cfg.Input.Path)
	set("input.delimiter", &cfg.Input.Delimiter)
	set("output.format", &cfg.Output.Format)
	set("logging.level", &cfg.Logging.Level)
	set("logging.format", &cfg.Logging.Format)
	set("logging.file", &cfg.Logging.File)
	set("history.driver", &cfg.History.Driver)
	set("history.path", &cfg.History.Path)
	set("server.host", &cfg.Server.Host)
	if port := env.GetInt("server.port"); port > 0 {
		cfg.Server.Port = port
	}
}

// app holds the collaborators shared by analyze and serve.
type app struct {
	cfg     *config.Config
	logger  *telemetry.Logger
	history *state.Manager
	bus     *event.Bus
	metrics *telemetry.Metrics
	runner  *runner.Runner
}

func newLogger(cfg *config.Config) (*telemetry.Logger, error) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger := telemetry.NewLoggerWithOptions(telemetry.LoggerOptions{
		Level:  level,
		Format: cfg.Logging.Format,
	})
	if cfg.Logging.File != "" {
		if err := logger.WithFile(cfg.Logging.File); err != nil {
			return nil, err
		}
	}
	return logger, nil
}

func openHistory(cfg *config.Config) (*state.Manager, error) {
	mgr, err := state.NewManager(cfg.History.Driver, cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}
	mgr.SetRetention(cfg.History.Keep)
	return mgr, nil
}

func newApp(cfg *config.Config, withHistory bool) (*app, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, metrics: telemetry.NewMetrics()}

	if withHistory && cfg.HistoryEnabled() {
		a.history, err = openHistory(cfg)
		if err != nil {
			logger.Close()
			return nil, err
		}
	}

	a.bus, err = event.NewBusFromConfig(cfg.Hooks, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.runner = runner.New(runner.Options{
		Loader:  loaderOptions(cfg.Input),
		History: a.history,
		Bus:     a.bus,
		Metrics: a.metrics,
		Logger:  logger,
	})
	return a, nil
}

// Close drains hooks and releases history and log files.
func (a *app) Close() {
	if !a.bus.Wait(10 * time.Second) {
		a.logger.Warn("Timed out waiting for hooks")
	}
	if a.history != nil {
		a.history.Close()
	}
	a.logger.Close()
}

func loaderOptions(in config.InputConfig) loader.Options {
	return loader.Options{
		Delimiter: in.DelimiterRune(),
		Comment:   in.CommentRune(),
		TrimSpace: in.TrimSpaceEnabled(),
	}
}

// statusIcon marks a run's status in listings.
func statusIcon(status string) string {
	switch status {
	case state.StatusRunning:
		return "◐"
	case state.StatusCompleted:
		return "●"
	case state.StatusFailed:
		return "✗"
	default:
		return "?"
	}
}

func heading(s string) string {
	return headStyle.Render(s) + "\n" + strings.Repeat("-", len(s))
}
