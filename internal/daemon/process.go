package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"tiles/internal/state"
)

// ErrNotRunning is returned by Stop when no pid marker exists.
var ErrNotRunning = errors.New("daemon is not running")

// Process controls the daemon's operating system process through a pid marker file.
type Process struct {
	// PidFile is the marker holding the daemon's decimal pid.
	PidFile string
	// ServerDir is the daemon project directory passed to uv.
	ServerDir string
	// Command overrides the spawn command line (default: uv run --project <ServerDir> python -m server.main).
	Command []string
	// Grace is how long Stop waits after SIGTERM before SIGKILL (0 = 5s).
	Grace time.Duration

	Prober state.Prober
	Logger zerolog.Logger
}

func (p *Process) command() []string {
	if len(p.Command) > 0 {
		return p.Command
	}
	return []string{"uv", "run", "--project", p.ServerDir, "python", "-m", "server.main"}
}

func (p *Process) prober() state.Prober {
	if p.Prober == nil {
		return state.ProcessProber{}
	}
	return p.Prober
}

// PID returns the pid recorded in the marker file.
func (p *Process) PID() (int, error) {
	b, err := os.ReadFile(p.PidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNotRunning
		}
		return 0, fmt.Errorf("read daemon pid: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid daemon pid marker %s: %q", p.PidFile, strings.TrimSpace(string(b)))
	}
	return pid, nil
}

// Start spawns the daemon detached from the caller's session and records its
// pid. If the marker already names a live process that pid is returned and
// nothing is spawned.
func (p *Process) Start(ctx context.Context) (int, error) {
	if pid, err := p.PID(); err == nil && p.prober().Alive(pid) {
		p.Logger.Debug().Int("pid", pid).Msg("daemon event=already_running")
		return pid, nil
	}
	args := p.command()
	if _, err := exec.LookPath(args[0]); err != nil {
		return 0, fmt.Errorf("daemon launcher %q not found on PATH: %w", args[0], err)
	}
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = p.ServerDir
	cmd.SysProcAttr = detachAttr()
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	// Reap the child if it exits while this process is still alive.
	go func() { _ = cmd.Wait() }()

	if err := writePid(p.PidFile, pid); err != nil {
		_ = cmd.Process.Kill()
		return 0, err
	}
	p.Logger.Info().Int("pid", pid).Strs("cmd", args).Msg("daemon event=spawn")
	return pid, nil
}

// Stop terminates the daemon named by the pid marker: SIGTERM, then SIGKILL
// once the grace period elapses. The marker is removed in every case where
// the process is known to be gone.
func (p *Process) Stop(ctx context.Context) error {
	pid, err := p.PID()
	if err != nil {
		return err
	}
	alive := p.prober()
	if !alive.Alive(pid) {
		p.Logger.Debug().Int("pid", pid).Msg("daemon event=stale_marker")
		return p.removeMarker()
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal daemon %d: %w", pid, err)
	}
	grace := p.Grace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	deadline := time.NewTimer(grace)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for alive.Alive(pid) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			p.Logger.Warn().Int("pid", pid).Dur("grace", grace).Msg("daemon event=kill")
			if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				return fmt.Errorf("kill daemon %d: %w", pid, err)
			}
			return p.removeMarker()
		case <-tick.C:
		}
	}
	p.Logger.Info().Int("pid", pid).Msg("daemon event=stopped")
	return p.removeMarker()
}

func (p *Process) removeMarker() error {
	if err := os.Remove(p.PidFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove daemon pid marker: %w", err)
	}
	return nil
}

func writePid(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("write daemon pid: %w", err)
	}
	return nil
}
