// Package config handles loading and saving arbor configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/arbor/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LayoutConfig controls node placement.
type LayoutConfig struct {
	LevelSpacing float64 `yaml:"level_spacing,omitempty"` // horizontal gap per depth
	Height       float64 `yaml:"height,omitempty"`        // vertical extent of the tree
}

// AnimationConfig controls transitions.
type AnimationConfig struct {
	Duration      time.Duration `yaml:"duration,omitempty"`       // e.g. "500ms"
	ReducedMotion bool          `yaml:"reduced_motion,omitempty"` // apply changes without animating
}

// TooltipConfig controls hover text.
type TooltipConfig struct {
	Placeholder string `yaml:"placeholder,omitempty"` // shown for nodes without a label
}

// UIConfig holds terminal preferences.
type UIConfig struct {
	CellWidth    float64 `yaml:"cell_width,omitempty"`    // diagram units per terminal column
	CellHeight   float64 `yaml:"cell_height,omitempty"`   // diagram units per terminal row
	RootExpanded bool    `yaml:"root_expanded,omitempty"` // start with the root's children shown
}

// Config is the top-level configuration.
type Config struct {
	Layout    LayoutConfig    `yaml:"layout,omitempty"`
	Animation AnimationConfig `yaml:"animation,omitempty"`
	Tooltip   TooltipConfig   `yaml:"tooltip,omitempty"`
	UI        UIConfig        `yaml:"ui,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Layout: LayoutConfig{
			LevelSpacing: 180,
			Height:       600,
		},
		Animation: AnimationConfig{
			Duration: 500 * time.Millisecond,
		},
		Tooltip: TooltipConfig{
			Placeholder: "None",
		},
		UI: UIConfig{
			CellWidth:  10,
			CellHeight: 20,
		},
	}
}

// TransitionDuration is the effective animation length.
func (c Config) TransitionDuration() time.Duration {
	if c.Animation.ReducedMotion || c.Animation.Duration < 0 {
		return 0
	}
	return c.Animation.Duration
}

// Normalize replaces unusable values with defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Layout.LevelSpacing <= 0 {
		c.Layout.LevelSpacing = def.Layout.LevelSpacing
	}
	if c.Layout.Height <= 0 {
		c.Layout.Height = def.Layout.Height
	}
	if c.Tooltip.Placeholder == "" {
		c.Tooltip.Placeholder = def.Tooltip.Placeholder
	}
	if c.UI.CellWidth <= 0 {
		c.UI.CellWidth = def.UI.CellWidth
	}
	if c.UI.CellHeight <= 0 {
		c.UI.CellHeight = def.UI.CellHeight
	}
}

// ConfigDir returns the XDG config directory for arbor.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "arbor")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "arbor")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	path = expandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
