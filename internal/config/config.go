package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/experiment-control/internal/monitor"
	"github.com/danielpatrickdp/experiment-control/internal/stopping"
)

// FileName is the configuration file searched for by Find.
const FileName = "control.yaml"

// #region config-types
// ProjectConfig names the campaign for tracking and reports.
type ProjectConfig struct {
	Name string `yaml:"name"`
}

// TrackingConfig locates the experiment-tracking database.
type TrackingConfig struct {
	DBPath string `yaml:"db_path"`
}

// Config is the full file layout. Absent blocks or keys keep their
// defaults; the struct is read-only once loaded — engines receive it
// explicitly, there is no process-wide config object.
type Config struct {
	Project  ProjectConfig         `yaml:"project"`
	Monitor  monitor.MonitorConfig `yaml:"monitor"`
	Stopping stopping.Policy       `yaml:"stopping_criteria"`
	Tracking TrackingConfig        `yaml:"tracking"`
}

// #endregion config-types

// #region defaults
// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Project:  ProjectConfig{Name: "experiment-campaign"},
		Monitor:  monitor.DefaultMonitorConfig(),
		Stopping: stopping.DefaultPolicy(),
		Tracking: TrackingConfig{DBPath: "control.db"},
	}
}

// #endregion defaults

// #region load
// Load reads a YAML config file over the defaults, so absent blocks and
// keys fall back rather than zeroing out.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Find locates control.yaml in the working directory, then its parent.
// Returns "" when neither exists.
func Find() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	candidate := filepath.Join(cwd, FileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}

	parent := filepath.Join(filepath.Dir(cwd), FileName)
	if _, err := os.Stat(parent); err == nil {
		return parent
	}

	return ""
}

// LoadOrDefault loads the discovered config file, or the defaults when
// none is found.
func LoadOrDefault() (Config, error) {
	path := Find()
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// #endregion load
