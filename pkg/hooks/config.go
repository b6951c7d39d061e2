// Package hooks runs user commands around snapshot export.
// Hooks are configured via .arbor/hooks.yaml and run at specific points
// in the export pipeline (pre-export, post-export). Pre-export hooks run
// before the payload is loaded, so they can regenerate it; post-export
// hooks typically publish the written files.
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HookPhase names a point in the export pipeline.
type HookPhase string

const (
	// PreExport runs before export generation. Failure cancels export.
	PreExport HookPhase = "pre-export"
	// PostExport runs after export is written. Failure is logged but doesn't break export.
	PostExport HookPhase = "post-export"
)

// Hook is one configured command.
type Hook struct {
	Name    string            `yaml:"name" json:"name"`                             // Human-readable name
	Command string            `yaml:"command" json:"command"`                       // Shell command to run
	Timeout time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`   // Execution timeout (default: 30s)
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`           // Additional environment variables
	OnError string            `yaml:"on_error,omitempty" json:"on_error,omitempty"` // "fail" (default for pre) or "continue" (default for post)
}

// Config holds all hook configurations
type Config struct {
	Hooks HooksByPhase `yaml:"hooks" json:"hooks"`
}

// HooksByPhase organizes hooks by their execution phase
type HooksByPhase struct {
	PreExport  []Hook `yaml:"pre-export,omitempty" json:"pre-export,omitempty"`
	PostExport []Hook `yaml:"post-export,omitempty" json:"post-export,omitempty"`
}

// ExportContext is what hooks learn about the export, through ARBOR_*
// environment variables.
type ExportContext struct {
	Source      string    // ARBOR_SOURCE: the tree payload (file, URL or -)
	ExportPaths []string  // ARBOR_EXPORT_PATH (first) and ARBOR_EXPORT_PATHS (comma separated)
	NodeCount   int       // ARBOR_NODE_COUNT, once the payload is loaded; post-export only
	Timestamp   time.Time // ARBOR_TIMESTAMP: export timestamp (RFC3339)
}

// ToEnv converts export context to environment variables. ARBOR_NODE_COUNT
// is left out while the count is unknown.
func (c ExportContext) ToEnv() []string {
	first := ""
	if len(c.ExportPaths) > 0 {
		first = c.ExportPaths[0]
	}
	env := []string{
		fmt.Sprintf("ARBOR_SOURCE=%s", c.Source),
		fmt.Sprintf("ARBOR_EXPORT_PATH=%s", first),
		fmt.Sprintf("ARBOR_EXPORT_PATHS=%s", strings.Join(c.ExportPaths, ",")),
		fmt.Sprintf("ARBOR_TIMESTAMP=%s", c.Timestamp.Format(time.RFC3339)),
	}
	if c.NodeCount > 0 {
		env = append(env, fmt.Sprintf("ARBOR_NODE_COUNT=%d", c.NodeCount))
	}
	return env
}

// DefaultTimeout is the default hook execution timeout
const DefaultTimeout = 30 * time.Second

// Location of the hooks file relative to the project directory.
const (
	ConfigDir  = ".arbor"
	ConfigFile = "hooks.yaml"
)

// Loader loads hook configuration from .arbor/hooks.yaml
type Loader struct {
	projectDir string
	config     *Config
	warnings   []string
}

// LoaderOption configures the loader
type LoaderOption func(*Loader)

// WithProjectDir sets the project directory (default: current directory)
func WithProjectDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.projectDir = dir
	}
}

// NewLoader creates a new hook loader with options
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}

	for _, opt := range opts {
		opt(l)
	}

	if l.projectDir == "" {
		l.projectDir, _ = os.Getwd()
	}

	return l
}

// Load loads hook configuration from .arbor/hooks.yaml
func (l *Loader) Load() error {
	configPath := filepath.Join(l.projectDir, ConfigDir, ConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file means no hooks - this is OK
			l.config = &Config{}
			return nil
		}
		return fmt.Errorf("reading hooks config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing %s: %w", configPath, err)
	}

	// Apply defaults and validate
	l.normalizeConfig(&config)

	l.config = &config
	return nil
}

// normalizeConfig applies defaults and validates hooks
func (l *Loader) normalizeConfig(config *Config) {
	config.Hooks.PreExport, l.warnings = normalizeHooks(config.Hooks.PreExport, PreExport, l.warnings)
	config.Hooks.PostExport, l.warnings = normalizeHooks(config.Hooks.PostExport, PostExport, l.warnings)
}

// normalizeHooks applies defaults, drops empty commands, and accumulates warnings.
func normalizeHooks(hooks []Hook, phase HookPhase, warnings []string) ([]Hook, []string) {
	var out []Hook
	for i := range hooks {
		hook := hooks[i]
		if strings.TrimSpace(hook.Command) == "" {
			warnings = append(warnings, fmt.Sprintf("%s hook %d has empty command; skipping", phase, i+1))
			continue
		}
		if hook.Timeout == 0 {
			hook.Timeout = DefaultTimeout
		}
		if hook.OnError == "" {
			if phase == PreExport {
				hook.OnError = "fail" // pre-export failures cancel export by default
			} else {
				hook.OnError = "continue" // post-export failures don't break export by default
			}
		}
		if hook.Name == "" {
			hook.Name = fmt.Sprintf("%s-%d", phase, i+1)
		}
		out = append(out, hook)
	}
	return out, warnings
}

// Config returns the loaded configuration (or empty if not loaded)
func (l *Loader) Config() *Config {
	if l.config == nil {
		return &Config{}
	}
	return l.config
}

// HasHooks returns true if any hooks are configured
func (l *Loader) HasHooks() bool {
	if l.config == nil {
		return false
	}
	return len(l.config.Hooks.PreExport) > 0 || len(l.config.Hooks.PostExport) > 0
}

// GetHooks returns hooks for a specific phase
func (l *Loader) GetHooks(phase HookPhase) []Hook {
	if l.config == nil {
		return nil
	}

	switch phase {
	case PreExport:
		return l.config.Hooks.PreExport
	case PostExport:
		return l.config.Hooks.PostExport
	default:
		return nil
	}
}

// Warnings returns any warnings from loading
func (l *Loader) Warnings() []string {
	return l.warnings
}

// LoadDefault creates a loader and loads with default settings
func LoadDefault() (*Loader, error) {
	loader := NewLoader()
	if err := loader.Load(); err != nil {
		return nil, err
	}
	return loader, nil
}

// UnmarshalYAML accepts timeouts as Go durations ("90s", "2m") or as a
// bare number of seconds.
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	// Mirrors Hook with a textual timeout.
	var raw struct {
		Name    string            `yaml:"name"`
		Command string            `yaml:"command"`
		Timeout string            `yaml:"timeout,omitempty"`
		Env     map[string]string `yaml:"env,omitempty"`
		OnError string            `yaml:"on_error,omitempty"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	timeout, err := parseTimeout(raw.Timeout)
	if err != nil {
		return err
	}
	*h = Hook{Name: raw.Name, Command: raw.Command, Timeout: timeout, Env: raw.Env, OnError: raw.OnError}
	return nil
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: want a duration like 30s or a number of seconds", s)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
