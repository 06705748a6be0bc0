package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds the CLI's tunables.
// Zero values mean "unspecified"; Default and Merge fill them in.
type Config struct {
	DaemonHost          string   `json:"daemon_host" yaml:"daemon_host" toml:"daemon_host"`
	DaemonPort          int      `json:"daemon_port" yaml:"daemon_port" toml:"daemon_port"`
	PollIntervalMS      int      `json:"poll_interval_ms" yaml:"poll_interval_ms" toml:"poll_interval_ms"`
	PollAttempts        int      `json:"poll_attempts" yaml:"poll_attempts" toml:"poll_attempts"`
	StopGraceMS         int      `json:"stop_grace_ms" yaml:"stop_grace_ms" toml:"stop_grace_ms"`
	DaemonModelPrefixes []string `json:"daemon_model_prefixes" yaml:"daemon_model_prefixes" toml:"daemon_model_prefixes"`
	ForegroundBin       string   `json:"foreground_bin" yaml:"foreground_bin" toml:"foreground_bin"`
	MemoryPath          string   `json:"memory_path" yaml:"memory_path" toml:"memory_path"`
	LogLevel            string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	MetricsTextfile     string   `json:"metrics_textfile" yaml:"metrics_textfile" toml:"metrics_textfile"`
	Dev                 bool     `json:"dev" yaml:"dev" toml:"dev"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DaemonHost:          "127.0.0.1",
		DaemonPort:          6969,
		PollIntervalMS:      1000,
		PollAttempts:        15,
		StopGraceMS:         5000,
		DaemonModelPrefixes: []string{"driaforall/mem-agent"},
		ForegroundBin:       "mlx_lm.chat",
		LogLevel:            "warn",
	}
}

// Merge returns c with every non-zero field of o applied on top.
func (c Config) Merge(o Config) Config {
	if o.DaemonHost != "" {
		c.DaemonHost = o.DaemonHost
	}
	if o.DaemonPort != 0 {
		c.DaemonPort = o.DaemonPort
	}
	if o.PollIntervalMS != 0 {
		c.PollIntervalMS = o.PollIntervalMS
	}
	if o.PollAttempts != 0 {
		c.PollAttempts = o.PollAttempts
	}
	if o.StopGraceMS != 0 {
		c.StopGraceMS = o.StopGraceMS
	}
	if len(o.DaemonModelPrefixes) > 0 {
		c.DaemonModelPrefixes = append([]string(nil), o.DaemonModelPrefixes...)
	}
	if o.ForegroundBin != "" {
		c.ForegroundBin = o.ForegroundBin
	}
	if o.MemoryPath != "" {
		c.MemoryPath = o.MemoryPath
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.MetricsTextfile != "" {
		c.MetricsTextfile = o.MetricsTextfile
	}
	if o.Dev {
		c.Dev = true
	}
	return c
}

// Validate rejects values the CLI cannot work with.
func (c Config) Validate() error {
	if c.DaemonPort <= 0 || c.DaemonPort > 65535 {
		return fmt.Errorf("daemon_port out of range: %d", c.DaemonPort)
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive: %d", c.PollIntervalMS)
	}
	if c.PollAttempts <= 0 {
		return fmt.Errorf("poll_attempts must be positive: %d", c.PollAttempts)
	}
	if c.StopGraceMS < 0 {
		return fmt.Errorf("stop_grace_ms must not be negative: %d", c.StopGraceMS)
	}
	if strings.TrimSpace(c.ForegroundBin) == "" {
		return fmt.Errorf("foreground_bin is empty")
	}
	return nil
}
