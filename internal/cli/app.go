package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"tiles/internal/config"
	"tiles/internal/daemon"
	"tiles/internal/manager"
	"tiles/internal/paths"
	"tiles/internal/runner"
	"tiles/internal/state"
)

// Options wires the CLI to its environment.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// app is the per-invocation state shared by the subcommands.
type app struct {
	opts Options

	// flags
	configPath string
	logLevel   string
	dev        bool

	cfg    config.Config
	layout paths.Layout
	log    zerolog.Logger
	client *daemon.Client
	mgr    *manager.Manager
}

// setup resolves configuration and builds the collaborators. Precedence:
// flags > TILES_* env > config file > defaults.
func (a *app) setup() error {
	cfg := config.Default()
	envCfg, err := config.ApplyEnv(config.Config{}, os.Getenv)
	if err != nil {
		return err
	}
	dev := a.dev || envCfg.Dev

	path := a.configPath
	if path == "" {
		layout, err := paths.Resolve(dev)
		if err != nil {
			return err
		}
		path, _ = layout.ConfigFile()
	}
	if path != "" {
		p, err := paths.Expand(path)
		if err != nil {
			return err
		}
		file, err := config.Load(p)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = cfg.Merge(file)
	}
	cfg = cfg.Merge(envCfg)
	if a.dev {
		cfg.Dev = true
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg

	layout, err := paths.Resolve(cfg.Dev)
	if err != nil {
		return err
	}
	a.layout = layout
	a.log = newLogger(a.opts.Stderr, cfg.LogLevel)

	a.client = daemon.NewClient(cfg.DaemonHost, cfg.DaemonPort)
	pollInterval := time.Duration(cfg.PollIntervalMS) * time.Millisecond
	store := &state.Store{
		Path: layout.StateFile(),
		// Run holds the lock across the whole readiness poll.
		LockWait: pollInterval*time.Duration(cfg.PollAttempts) + 10*time.Second,
	}
	proc := &daemon.Process{
		PidFile:   layout.PidFile(),
		ServerDir: layout.ServerDir,
		Grace:     time.Duration(cfg.StopGraceMS) * time.Millisecond,
		Logger:    a.log,
	}
	fg := &runner.Runner{
		Bin:    cfg.ForegroundBin,
		Stdin:  a.opts.Stdin,
		Stdout: a.opts.Stdout,
		Stderr: a.opts.Stderr,
		Logger: a.log,
	}
	a.mgr = manager.NewWithConfig(manager.ManagerConfig{
		Store:          store,
		Daemon:         a.client,
		Process:        proc,
		Foreground:     fg,
		MemoryPath:     a.memoryPath,
		DaemonPrefixes: cfg.DaemonModelPrefixes,
		DaemonAddr:     fmt.Sprintf("%s:%d", cfg.DaemonHost, cfg.DaemonPort),
		PollInterval:   pollInterval,
		PollAttempts:   cfg.PollAttempts,
		ForegroundHint: runner.InstallHint,
		Dependencies: []manager.Dependency{
			{Bin: "uv", Hint: "install uv: https://docs.astral.sh/uv/"},
			{Bin: cfg.ForegroundBin, Hint: runner.InstallHint},
		},
		Logger:  &a.log,
		Metrics: prometheus.NewRegistry(),
	})
	a.log.Debug().Str("config_dir", layout.ConfigDir).Str("data_dir", layout.DataDir).Msg("cli event=setup")
	return nil
}

// memoryPath honours a configured memory_path and records it in the marker,
// so later runs without the override keep using it.
func (a *app) memoryPath() (string, error) {
	if a.cfg.MemoryPath != "" {
		return a.layout.SetMemoryPath(a.cfg.MemoryPath)
	}
	return a.layout.MemoryPath()
}

// writeMetrics dumps the manager's collectors in textfile-collector format.
func (a *app) writeMetrics() {
	if a.mgr == nil || strings.TrimSpace(a.cfg.MetricsTextfile) == "" {
		return
	}
	p, err := paths.Expand(a.cfg.MetricsTextfile)
	if err == nil {
		err = prometheus.WriteToTextfile(p, a.mgr.MetricsRegistry())
	}
	if err != nil {
		a.log.Warn().Err(err).Str("path", a.cfg.MetricsTextfile).Msg("cli event=metrics_write_failed")
	}
}
