// Package paths resolves the per-user directories tiles reads and writes.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Expand resolves a user-supplied path from config or the command line:
// $VAR and ${VAR} are substituted, then a leading "~" or "~/" becomes the
// home directory.
func Expand(path string) (string, error) {
	path = os.ExpandEnv(strings.TrimSpace(path))
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
}

// configNames are tried in order by ConfigFile.
var configNames = []string{"config.yaml", "config.yml", "config.toml", "config.json"}

// ConfigFile returns the first config file present in ConfigDir.
func (l Layout) ConfigFile() (string, bool) {
	for _, name := range configNames {
		p := filepath.Join(l.ConfigDir, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, true
		}
	}
	return "", false
}

// Layout is the set of directories used by one installation.
type Layout struct {
	// ConfigDir holds the running-model registry, the daemon pid marker and the memory marker.
	ConfigDir string
	// DataDir holds the installable model registry and the default memory directory.
	DataDir string
	// ServerDir is the daemon's project directory.
	ServerDir string
}

// Resolve returns the XDG-based layout, or a layout rooted at
// <cwd>/.tiles_dev when dev is set.
func Resolve(dev bool) (Layout, error) {
	if dev {
		cwd, err := os.Getwd()
		if err != nil {
			return Layout{}, fmt.Errorf("current dir: %w", err)
		}
		base := filepath.Join(cwd, ".tiles_dev", "tiles")
		return Layout{ConfigDir: base, DataDir: base, ServerDir: filepath.Join(cwd, "server")}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Layout{}, fmt.Errorf("home dir: %w", err)
	}
	config := xdg("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	data := xdg("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	return Layout{
		ConfigDir: filepath.Join(config, "tiles"),
		DataDir:   filepath.Join(data, "tiles"),
		ServerDir: filepath.Join(data, "tiles", "server"),
	}, nil
}

func xdg(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// StateFile is the running-model registry document.
func (l Layout) StateFile() string { return filepath.Join(l.ConfigDir, "models.json") }

// PidFile is the daemon pid marker.
func (l Layout) PidFile() string { return filepath.Join(l.ConfigDir, "server.pid") }

// RegistryDir holds one subdirectory per installable model.
func (l Layout) RegistryDir() string { return filepath.Join(l.DataDir, "registry") }

func (l Layout) memoryMarker() string { return filepath.Join(l.ConfigDir, ".memory_path") }

// MemoryPath returns the memory working directory. The first call picks
// <DataDir>/memory, creates it and caches the choice in a marker file;
// later calls return whatever the marker says.
func (l Layout) MemoryPath() (string, error) {
	b, err := os.ReadFile(l.memoryMarker())
	if err == nil {
		if p := strings.TrimSpace(string(b)); p != "" {
			return p, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read memory marker: %w", err)
	}
	mem := filepath.Join(l.DataDir, "memory")
	if err := os.MkdirAll(mem, 0o755); err != nil {
		return "", fmt.Errorf("create memory dir: %w", err)
	}
	if err := os.MkdirAll(l.ConfigDir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(l.memoryMarker(), []byte(mem), 0o644); err != nil {
		return "", fmt.Errorf("write memory marker: %w", err)
	}
	return mem, nil
}

// SetMemoryPath makes path the memory directory for this and later
// invocations: it is created and recorded in the marker. The expanded path
// is returned.
func (l Layout) SetMemoryPath(path string) (string, error) {
	p, err := Expand(path)
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", fmt.Errorf("empty memory path")
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", fmt.Errorf("create memory dir: %w", err)
	}
	if err := os.MkdirAll(l.ConfigDir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(l.memoryMarker(), []byte(p), 0o644); err != nil {
		return "", fmt.Errorf("write memory marker: %w", err)
	}
	return p, nil
}
