package manager

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"tiles/internal/state"
)

// ensureDaemon returns once the daemon answers its liveness probe, spawning it
// first if needed. spawned reports whether a spawn happened.
func (m *Manager) ensureDaemon(ctx context.Context) (spawned bool, err error) {
	if err := m.daemon.Ping(ctx); err == nil {
		return false, nil
	}
	pid, err := m.process.Start(ctx)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return false, ErrDependencyUnavailable(err.Error()+"; install uv from https://docs.astral.sh/uv/", err)
		}
		return false, err
	}
	m.metrics.spawns.Inc()
	m.log.Info().Int("pid", pid).Msg("manager event=daemon_spawn")
	m.publish(EventDaemonSpawn, "", map[string]any{"pid": pid})

	for attempt := 1; attempt <= m.pollAttempts; attempt++ {
		if err := sleepCtx(ctx, m.pollInterval); err != nil {
			return true, err
		}
		if err := m.daemon.Ping(ctx); err == nil {
			m.log.Info().Int("pid", pid).Int("attempt", attempt).Msg("manager event=daemon_ready")
			m.publish(EventDaemonReady, "", map[string]any{"pid": pid, "attempt": attempt})
			return true, nil
		}
		m.log.Debug().Int("attempt", attempt).Msg("manager event=daemon_wait")
	}
	m.log.Error().Int("pid", pid).Int("attempts", m.pollAttempts).Msg("manager event=daemon_timeout")
	m.publish(EventDaemonTimeout, "", map[string]any{"pid": pid, "attempts": m.pollAttempts})
	return true, ErrDaemonTimeout(m.daemonAddr, m.pollAttempts)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Manager) stopDaemonBestEffort(ctx context.Context) {
	if err := m.process.Stop(ctx); err != nil {
		m.log.Warn().Err(err).Msg("manager event=daemon_stop_failed")
		m.publish(EventDaemonStopFailed, "", map[string]any{"error": err.Error()})
		return
	}
	m.log.Info().Msg("manager event=daemon_stop")
	m.publish(EventDaemonStop, "", nil)
}

// StartDaemon makes sure the daemon is up without loading any model.
func (m *Manager) StartDaemon(ctx context.Context) (spawned bool, err error) {
	defer func() { m.metrics.observe(opStartDaemon, err) }()
	err = m.store.View(ctx, func(*state.Registry) error {
		var e error
		spawned, e = m.ensureDaemon(ctx)
		return e
	})
	return spawned, err
}

// StopDaemon stops the daemon. It refuses while live models are registered
// unless force is set, in which case the registry is cleared as well. A
// missing pid marker is returned as is (daemon.ErrNotRunning).
func (m *Manager) StopDaemon(ctx context.Context, force bool) (err error) {
	defer func() { m.metrics.observe(opStopDaemon, err) }()
	var stopErr error
	err = m.store.Update(ctx, func(reg *state.Registry) error {
		changed := len(m.reconcile(reg)) > 0
		if !reg.IsEmpty() {
			if !force {
				names := make([]string, 0, reg.Len())
				for _, rec := range reg.List() {
					names = append(names, rec.Name)
				}
				return modelsRunningError{names: names}
			}
			for _, rec := range reg.List() {
				reg.Remove(rec.Name)
			}
			changed = true
		}
		m.setModels(reg)
		if stopErr = m.process.Stop(ctx); stopErr != nil {
			m.log.Warn().Err(stopErr).Msg("manager event=daemon_stop_failed")
			m.publish(EventDaemonStopFailed, "", map[string]any{"error": stopErr.Error()})
		} else {
			m.log.Info().Msg("manager event=daemon_stop")
			m.publish(EventDaemonStop, "", nil)
		}
		if !changed {
			return state.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return err
	}
	return stopErr
}
