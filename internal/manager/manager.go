package manager

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"tiles/internal/modelfile"
	"tiles/internal/state"
)

type Manager struct {
	store      *state.Store
	prober     state.Prober
	daemon     Daemon
	process    DaemonProcess
	foreground Foreground
	memoryPath func() (string, error)

	daemonPrefixes []string
	daemonAddr     string
	pollInterval   time.Duration
	pollAttempts   int
	foregroundHint string
	dependencies   []Dependency

	publisher EventPublisher
	log       zerolog.Logger
	registry  *prometheus.Registry
	metrics   *metrics
}

// MetricsRegistry returns the registry holding the manager's collectors.
func (m *Manager) MetricsRegistry() *prometheus.Registry { return m.registry }

// IsDaemonModel reports whether model is hosted by the shared daemon.
func (m *Manager) IsDaemonModel(model string) bool {
	for _, p := range m.daemonPrefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// Run starts the model described by mf under name.
//
// Daemon models are loaded into the shared daemon (spawning it when it does
// not answer) and registered. Other models are handed to the foreground
// runner, which blocks until the user leaves it; they are never registered.
// A name that already has a live record fails with a conflict and leaves the
// registry file untouched.
func (m *Manager) Run(ctx context.Context, name string, mf *modelfile.Modelfile) (out Outcome, err error) {
	if mf == nil {
		return Outcome{}, fmt.Errorf("run %q: nil modelfile", name)
	}
	if strings.TrimSpace(name) == "" {
		return Outcome{}, fmt.Errorf("run: empty model name")
	}
	defer func() { m.metrics.observe(opRun, err) }()
	model := mf.From()
	m.log.Info().Str("name", name).Str("model", model).Msg("manager event=run_start")
	m.publish(EventRunStart, name, map[string]any{"model_id": model})

	daemonModel := m.IsDaemonModel(model)
	err = m.store.Update(ctx, func(reg *state.Registry) error {
		m.reconcile(reg)
		if rec, ok := reg.Get(name); ok {
			m.log.Warn().Str("name", name).Int("pid", rec.PID).Msg("manager event=run_conflict")
			m.publish(EventRunConflict, name, map[string]any{"pid": rec.PID})
			return ErrConflict(name, rec.PID)
		}
		if !daemonModel {
			m.setModels(reg)
			return state.ErrNoChange
		}
		spawned, err := m.ensureDaemon(ctx)
		if err != nil {
			return err
		}
		out.Spawned = spawned
		mem, err := m.memoryPath()
		if err != nil {
			return fmt.Errorf("resolve memory path: %w", err)
		}
		if err := m.daemon.Load(ctx, model, mem); err != nil {
			m.log.Error().Err(err).Str("name", name).Str("model", model).Msg("manager event=load_failed")
			m.publish(EventLoadFailed, name, map[string]any{"model_id": model, "error": err.Error()})
			return ErrDaemonRequestFailed("load", model, err)
		}
		pid, err := m.process.PID()
		if err != nil {
			return fmt.Errorf("read daemon pid after load: %w", err)
		}
		out.Mode = ModeDaemon
		out.Record = reg.Add(name, model, pid)
		m.setModels(reg)
		m.log.Info().Str("name", name).Str("model", model).Int("pid", pid).Msg("manager event=run_registered")
		m.publish(EventRunRegistered, name, map[string]any{"model_id": model, "pid": pid})
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if daemonModel {
		return out, nil
	}

	// The registry lock is released before handing over the terminal.
	m.log.Info().Str("name", name).Str("model", model).Msg("manager event=run_foreground")
	m.publish(EventRunForeground, name, map[string]any{"model_id": model})
	if err := m.foreground.Run(ctx, mf); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			msg := err.Error()
			if m.foregroundHint != "" {
				msg += "; " + m.foregroundHint
			}
			return Outcome{}, ErrDependencyUnavailable(msg, err)
		}
		return Outcome{}, err
	}
	return Outcome{Mode: ModeForeground}, nil
}

// Stop removes the record for name. When that leaves the registry empty the
// daemon is stopped too; a failure there is logged and not returned.
func (m *Manager) Stop(ctx context.Context, name string) (err error) {
	defer func() { m.metrics.observe(opStop, err) }()
	err = m.store.Update(ctx, func(reg *state.Registry) error {
		m.reconcile(reg)
		rec, ok := reg.Remove(name)
		if !ok {
			m.log.Warn().Str("name", name).Msg("manager event=stop_not_found")
			m.publish(EventStopNotFound, name, nil)
			return ErrNotFound(name)
		}
		m.setModels(reg)
		m.log.Info().Str("name", name).Int("pid", rec.PID).Msg("manager event=stop_done")
		m.publish(EventStopDone, name, map[string]any{"model_id": rec.ModelID, "pid": rec.PID})
		return nil
	})
	if err != nil {
		return err
	}
	m.stopDaemonIfIdle(ctx, name)
	return nil
}

// stopDaemonIfIdle stops the daemon when no model is registered. The
// registry is re-read under the lock so a concurrent run is not left without
// its daemon. Failures are logged, never returned.
func (m *Manager) stopDaemonIfIdle(ctx context.Context, name string) {
	err := m.store.View(ctx, func(reg *state.Registry) error {
		if reg.IsEmpty() {
			m.stopDaemonBestEffort(ctx)
		}
		return nil
	})
	if err != nil {
		m.log.Warn().Err(err).Str("name", name).Msg("manager event=daemon_stop_failed")
		m.publish(EventDaemonStopFailed, name, map[string]any{"error": err.Error()})
	}
}

// List reconciles the registry, persists any evictions and returns the
// remaining records. Callers must not depend on the order.
func (m *Manager) List(ctx context.Context) (out []state.Record, err error) {
	defer func() { m.metrics.observe(opList, err) }()
	err = m.store.Update(ctx, func(reg *state.Registry) error {
		evicted := m.reconcile(reg)
		m.setModels(reg)
		out = reg.List()
		if len(evicted) == 0 {
			return state.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// reconcile evicts dead records and reports them.
func (m *Manager) reconcile(reg *state.Registry) []state.Record {
	evicted := state.Reconcile(reg, m.prober)
	for _, rec := range evicted {
		m.metrics.evictions.Inc()
		m.log.Info().Str("name", rec.Name).Int("pid", rec.PID).Msg("manager event=stale_evicted")
		m.publish(EventStaleEvicted, rec.Name, map[string]any{"model_id": rec.ModelID, "pid": rec.PID})
	}
	return evicted
}

func (m *Manager) setModels(reg *state.Registry) {
	m.metrics.models.Set(float64(reg.Len()))
}
