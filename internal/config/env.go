package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ApplyEnv overrides c from TILES_* variables looked up through getenv.
func ApplyEnv(c Config, getenv func(string) string) (Config, error) {
	if v := strings.TrimSpace(getenv("TILES_DAEMON_HOST")); v != "" {
		c.DaemonHost = v
	}
	if v := strings.TrimSpace(getenv("TILES_DAEMON_PORT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("TILES_DAEMON_PORT: %w", err)
		}
		c.DaemonPort = n
	}
	if v := strings.TrimSpace(getenv("TILES_MEMORY_PATH")); v != "" {
		c.MemoryPath = v
	}
	if v := strings.TrimSpace(getenv("TILES_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(getenv("TILES_METRICS_TEXTFILE")); v != "" {
		c.MetricsTextfile = v
	}
	if v := strings.TrimSpace(getenv("TILES_DEV")); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return c, fmt.Errorf("TILES_DEV: %w", err)
		}
		c.Dev = dev
	}
	return c, nil
}
