package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	ttrErrors "github.com/stxkxs/ttr/internal/errors"
)

// Validate checks a configuration after defaults have been applied.
func Validate(cfg *Config) error {
	var errors []string

	if r := []rune(cfg.Input.Delimiter); len(r) != 1 && cfg.Input.Delimiter != `\t` && cfg.Input.Delimiter != "tab" {
		errors = append(errors, fmt.Sprintf("input.delimiter must be a single character, got %q", cfg.Input.Delimiter))
	} else if !validSeparator(cfg.Input.DelimiterRune()) {
		errors = append(errors, fmt.Sprintf("input.delimiter cannot be %q", cfg.Input.Delimiter))
	}
	if cfg.Input.Comment != "" && !validSeparator(cfg.Input.CommentRune()) {
		errors = append(errors, fmt.Sprintf("input.comment cannot be %q", cfg.Input.Comment))
	}
	if cfg.Input.Comment != "" && len([]rune(cfg.Input.Comment)) != 1 {
		errors = append(errors, fmt.Sprintf("input.comment must be a single character, got %q", cfg.Input.Comment))
	}
	if cfg.Input.Comment != "" && cfg.Input.Comment == cfg.Input.Delimiter {
		errors = append(errors, "input.comment and input.delimiter must differ")
	}

	validFormats := map[string]bool{"text": true, "json": true, "csv": true}
	if !validFormats[strings.ToLower(cfg.Output.Format)] {
		errors = append(errors, fmt.Sprintf("invalid output format: %s", cfg.Output.Format))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errors = append(errors, fmt.Sprintf("invalid logging level: %s", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid logging format: %s", cfg.Logging.Format))
	}

	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.History.Driver] {
		errors = append(errors, fmt.Sprintf("unsupported history driver: %s", cfg.History.Driver))
	}
	if cfg.History.Keep < 0 {
		errors = append(errors, "history.keep must be non-negative")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("server.port out of range: %d", cfg.Server.Port))
	}
	if cfg.Server.MaxUploadMB < 0 {
		errors = append(errors, "server.max_upload_mb must be non-negative")
	}

	for _, h := range cfg.Hooks.Hooks {
		if err := validateHook(h); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return ttrErrors.New(ttrErrors.CodeConfigInvalid,
			fmt.Sprintf("config validation failed: %s", strings.Join(errors, "; "))).
			WithSuggestion("Fix the listed fields in " + FileName + " or run 'ttr config show'")
	}
	return nil
}

// validSeparator mirrors what encoding/csv accepts for Comma and Comment.
func validSeparator(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError
}

// validateHook validates a single hook definition
func validateHook(h HookConfig) error {
	if h.Name == "" {
		return fmt.Errorf("hook name is required")
	}
	switch h.Type {
	case "shell":
		if h.Command == "" {
			return fmt.Errorf("hook %s: shell hook requires a command", h.Name)
		}
	case "webhook":
		if h.URL == "" {
			return fmt.Errorf("hook %s: webhook hook requires a url", h.Name)
		}
		if h.Retries != nil && *h.Retries < 0 {
			return fmt.Errorf("hook %s: retries must be >= 0", h.Name)
		}
	case "log":
	default:
		return fmt.Errorf("hook %s: unknown type %q (must be shell, webhook, or log)", h.Name, h.Type)
	}
	return nil
}
