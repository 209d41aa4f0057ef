// Package projectconfig provides the ProjectConfig struct and loader for
// .kensa.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultServerPort = 4680

	DefaultSessionDir = ".kensa-sessions"

	DefaultConfidenceLevel = 0.95
)

// ServerConfig holds dashboard server settings.
type ServerConfig struct {
	Port      int      `yaml:"port,omitempty"`
	NoBrowser *bool    `yaml:"no_browser,omitempty"`
	Origins   []string `yaml:"origins,omitempty"`
}

// SessionConfig holds snapshot persistence settings.
type SessionConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
	Resume  *bool  `yaml:"resume,omitempty"`
}

// StatsConfig holds statistics settings.
type StatsConfig struct {
	ConfidenceLevel float64 `yaml:"confidence_level,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .kensa.yaml.
type ProjectConfig struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Session SessionConfig `yaml:"session,omitempty"`
	Stats   StatsConfig   `yaml:"stats,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Server: ServerConfig{
			Port:      DefaultServerPort,
			NoBrowser: boolPtr(false),
		},
		Session: SessionConfig{
			Enabled: boolPtr(true),
			Dir:     DefaultSessionDir,
			Resume:  boolPtr(true),
		},
		Stats: StatsConfig{
			ConfidenceLevel: DefaultConfidenceLevel,
		},
	}
}

// SnapshotDir resolves the snapshot directory, empty when persistence is
// disabled.
func (c *ProjectConfig) SnapshotDir() string {
	if c.Session.Enabled != nil && !*c.Session.Enabled {
		return ""
	}
	return c.Session.Dir
}

// Load finds .kensa.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading .kensa.yaml: %w", err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing .kensa.yaml: %w", err)
	}

	// Merge file values onto defaults.
	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// findConfigFile walks up from dir looking for .kensa.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found. Propagates real I/O
// errors (e.g. permission denied) instead of silently swallowing them.
func findConfigFile(dir string) ([]byte, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, ".kensa.yaml")
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Server
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.NoBrowser != nil {
		dst.Server.NoBrowser = src.Server.NoBrowser
	}
	if len(src.Server.Origins) > 0 {
		dst.Server.Origins = src.Server.Origins
	}

	// Session
	if src.Session.Enabled != nil {
		dst.Session.Enabled = src.Session.Enabled
	}
	if src.Session.Dir != "" {
		dst.Session.Dir = src.Session.Dir
	}
	if src.Session.Resume != nil {
		dst.Session.Resume = src.Session.Resume
	}

	// Stats
	if src.Stats.ConfidenceLevel != 0 {
		dst.Stats.ConfidenceLevel = src.Stats.ConfidenceLevel
	}
}

func boolPtr(b bool) *bool {
	return &b
}
