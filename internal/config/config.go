package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main toolgate configuration
type Config struct {
	// Tools
	Tools ToolsConfig `json:"tools" mapstructure:"tools"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ToolsConfig holds tool-calling configuration
type ToolsConfig struct {
	// Enabled lists the manifest tools activated for this deployment.
	// A non-empty list is the sole signal that tool calling is on.
	Enabled []ToolActivation `json:"enabled" mapstructure:"enabled"`

	// MaxIterations caps model-call/tool-execution rounds per chat turn.
	MaxIterations int `json:"max_iterations" mapstructure:"max_iterations"`

	// DefaultTimeoutMS bounds a single tool execution in milliseconds.
	DefaultTimeoutMS int `json:"default_timeout_ms" mapstructure:"default_timeout_ms"`
}

// ToolActivation references a manifest tool by name, optionally
// overriding its description. Unknown keys are retained so the
// manager can emit a deprecation warning instead of failing.
type ToolActivation struct {
	Name        string         `json:"name" mapstructure:"name"`
	Description string         `json:"description,omitempty" mapstructure:"description"`
	Extra       map[string]any `json:"-" mapstructure:",remain"`
}

// UnmarshalJSON captures unrecognized activation keys into Extra.
func (a *ToolActivation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &a.Name); err != nil {
			return fmt.Errorf("activation name: %w", err)
		}
		delete(raw, "name")
	}
	if v, ok := raw["description"]; ok {
		if err := json.Unmarshal(v, &a.Description); err != nil {
			return fmt.Errorf("activation description: %w", err)
		}
		delete(raw, "description")
	}

	if len(raw) > 0 {
		a.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			a.Extra[k] = val
		}
	}

	return nil
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultMaxIterations bounds the tool loop when the config is silent.
const DefaultMaxIterations = 5

// DefaultToolTimeout bounds a single tool execution when the config is silent.
const DefaultToolTimeout = 30 * time.Second

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Tools: ToolsConfig{
			Enabled:          []ToolActivation{},
			MaxIterations:    DefaultMaxIterations,
			DefaultTimeoutMS: int(DefaultToolTimeout / time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
		DataDir: "",
	}
}

// DefaultTimeout returns the per-tool timeout as a duration.
func (t ToolsConfig) DefaultTimeout() time.Duration {
	if t.DefaultTimeoutMS <= 0 {
		return DefaultToolTimeout
	}
	return time.Duration(t.DefaultTimeoutMS) * time.Millisecond
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Tools.MaxIterations < 0 {
		return fmt.Errorf("tools.max_iterations cannot be negative")
	}
	if c.Tools.DefaultTimeoutMS < 0 {
		return fmt.Errorf("tools.default_timeout_ms cannot be negative")
	}

	seen := make(map[string]bool, len(c.Tools.Enabled))
	for i, activation := range c.Tools.Enabled {
		if activation.Name == "" {
			return fmt.Errorf("tools.enabled[%d]: name is required", i)
		}
		if seen[activation.Name] {
			return fmt.Errorf("tools.enabled: duplicate activation for %q", activation.Name)
		}
		seen[activation.Name] = true
	}

	if c.Logging.Level != "" {
		switch c.Logging.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
		}
	}

	return nil
}
