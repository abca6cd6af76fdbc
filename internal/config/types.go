package config

// Config represents the project configuration (ttr.yaml)
type Config struct {
	Name    string        `yaml:"name" json:"name"`
	Input   InputConfig   `yaml:"input" json:"input"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	History HistoryConfig `yaml:"history" json:"history"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Hooks   HooksConfig   `yaml:"hooks" json:"hooks"`
}

// InputConfig describes the delimited event log
type InputConfig struct {
	Path      string `yaml:"path" json:"path"`           // default file for `ttr analyze`
	Delimiter string `yaml:"delimiter" json:"delimiter"` // single character, "\t" for tabs
	Comment   string `yaml:"comment,omitempty" json:"comment,omitempty"`
	TrimSpace *bool  `yaml:"trim_space,omitempty" json:"trim_space,omitempty"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Format         string `yaml:"format" json:"format"` // text, json, csv
	IncludeSeconds bool   `yaml:"include_seconds" json:"include_seconds"`
	Color          bool   `yaml:"color" json:"color"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text, json
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// HistoryConfig configures run history storage
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Driver  string `yaml:"driver" json:"driver"` // sqlite, memory
	Path    string `yaml:"path" json:"path"`
	Keep    int    `yaml:"keep" json:"keep"` // runs retained, 0 keeps everything
}

// ServerConfig configures the upload dashboard
type ServerConfig struct {
	Host        string `yaml:"host" json:"host"`
	Port        int    `yaml:"port" json:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb" json:"max_upload_mb"`
}

// HooksConfig configures lifecycle event hooks.
type HooksConfig struct {
	Enabled bool         `yaml:"enabled" json:"enabled"`
	Hooks   []HookConfig `yaml:"hooks" json:"hooks"`
}

// HookConfig defines a single hook.
type HookConfig struct {
	Name     string   `yaml:"name" json:"name"`
	Type     string   `yaml:"type" json:"type"`     // shell, webhook, log
	Events   []string `yaml:"events" json:"events"` // event types to match
	Blocking bool     `yaml:"blocking" json:"blocking"`
	Command  string   `yaml:"command,omitempty" json:"command,omitempty"` // for shell hooks
	URL      string   `yaml:"url,omitempty" json:"url,omitempty"`         // for webhook hooks
	Retries  *int     `yaml:"retries,omitempty" json:"retries,omitempty"` // for webhook hooks; nil uses the default
	Level    string   `yaml:"level,omitempty" json:"level,omitempty"`     // for log hooks (debug, info, warn)
}

// HistoryEnabled reports whether runs should be recorded.
func (c *Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}

// TrimSpaceEnabled reports whether loader fields are trimmed.
func (c InputConfig) TrimSpaceEnabled() bool {
	return c.TrimSpace == nil || *c.TrimSpace
}

// DelimiterRune returns the field separator. Call after validation.
func (c InputConfig) DelimiterRune() rune {
	return singleRune(c.Delimiter, ',')
}

// CommentRune returns the comment marker, or 0 when comments are disabled.
func (c InputConfig) CommentRune() rune {
	return singleRune(c.Comment, 0)
}

func singleRune(s string, def rune) rune {
	switch s {
	case "":
		return def
	case `\t`, "tab":
		return '\t'
	}
	r := []rune(s)
	if len(r) != 1 {
		return def
	}
	return r[0]
}
