package manager

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"tiles/internal/state"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultPollInterval = time.Second
	defaultPollAttempts = 15
)

var defaultDaemonPrefixes = []string{"driaforall/mem-agent"}

// ManagerConfig encapsulates all collaborators and tunables of a Manager.
type ManagerConfig struct {
	Store      *state.Store
	Prober     state.Prober
	Daemon     Daemon
	Process    DaemonProcess
	Foreground Foreground
	// MemoryPath resolves the memory directory sent with load requests.
	MemoryPath func() (string, error)

	// DaemonPrefixes selects the models that are hosted by the daemon.
	DaemonPrefixes []string
	// DaemonAddr is only used in messages.
	DaemonAddr   string
	PollInterval time.Duration
	PollAttempts int
	// ForegroundHint is appended when the foreground executable is missing.
	ForegroundHint string
	// Dependencies are the executables reported by SanityCheck.
	Dependencies []Dependency

	Publisher EventPublisher
	Logger    *zerolog.Logger
	// Metrics receives the manager's collectors; nil creates a private registry.
	Metrics *prometheus.Registry
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		store:          cfg.Store,
		prober:         cfg.Prober,
		daemon:         cfg.Daemon,
		process:        cfg.Process,
		foreground:     cfg.Foreground,
		memoryPath:     cfg.MemoryPath,
		daemonAddr:     cfg.DaemonAddr,
		foregroundHint: cfg.ForegroundHint,
		publisher:      cfg.Publisher,
		dependencies:   append([]Dependency(nil), cfg.Dependencies...),
	}
	// Apply defaults if unset
	if m.prober == nil {
		m.prober = state.ProcessProber{}
	}
	if m.memoryPath == nil {
		m.memoryPath = func() (string, error) { return "", nil }
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if len(cfg.DaemonPrefixes) == 0 {
		m.daemonPrefixes = defaultDaemonPrefixes
	} else {
		m.daemonPrefixes = append([]string(nil), cfg.DaemonPrefixes...)
	}
	if cfg.PollInterval <= 0 {
		m.pollInterval = defaultPollInterval
	} else {
		m.pollInterval = cfg.PollInterval
	}
	if cfg.PollAttempts <= 0 {
		m.pollAttempts = defaultPollAttempts
	} else {
		m.pollAttempts = cfg.PollAttempts
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	} else {
		m.log = zerolog.Nop()
	}
	m.registry = cfg.Metrics
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.metrics = newMetrics(m.registry)
	return m
}
