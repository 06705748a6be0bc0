package manager

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tiles/internal/daemon"
	"tiles/internal/modelfile"
	"tiles/internal/state"
)

const daemonPID = 4242

// fakeDaemon answers pings once up, optionally after a number of failed probes.
type fakeDaemon struct {
	mu         sync.Mutex
	up         bool
	readyAfter int // failed probes to serve after coming up
	pings      int
	loadErr    error
	loads      []daemon.LoadRequest
}

func (d *fakeDaemon) Ping(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pings++
	if !d.up {
		return errors.New("connection refused")
	}
	if d.readyAfter > 0 {
		d.readyAfter--
		return errors.New("connection refused")
	}
	return nil
}

func (d *fakeDaemon) Load(_ context.Context, model, memoryPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loads = append(d.loads, daemon.LoadRequest{Model: model, MemoryPath: memoryPath})
	return d.loadErr
}

// fakeProcess brings the fake daemon up on Start.
type fakeProcess struct {
	mu        sync.Mutex
	d         *fakeDaemon
	noUp      bool // Start succeeds but the daemon never answers
	startErr  error
	stopErr   error
	running   bool
	starts    int
	stops     int
	pidErr    error
	readyWait int
}

func (p *fakeProcess) Start(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts++
	if p.startErr != nil {
		return 0, p.startErr
	}
	p.running = true
	if !p.noUp {
		p.d.mu.Lock()
		p.d.up = true
		p.d.readyAfter = p.readyWait
		p.d.mu.Unlock()
	}
	return daemonPID, nil
}

func (p *fakeProcess) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	p.running = false
	return p.stopErr
}

func (p *fakeProcess) PID() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pidErr != nil {
		return 0, p.pidErr
	}
	return daemonPID, nil
}

type fakeForeground struct {
	runs []string
	err  error
}

func (f *fakeForeground) Run(_ context.Context, mf *modelfile.Modelfile) error {
	f.runs = append(f.runs, mf.From())
	return f.err
}

// aliveSet is a Prober backed by a set of live pids.
type aliveSet struct {
	mu   sync.Mutex
	pids map[int]bool
}

func newAliveSet(pids ...int) *aliveSet {
	s := &aliveSet{pids: map[int]bool{}}
	for _, p := range pids {
		s.pids[p] = true
	}
	return s
}

func (s *aliveSet) Alive(pid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pids[pid]
}

func (s *aliveSet) kill(pid int) {
	s.mu.Lock()
	delete(s.pids, pid)
	s.mu.Unlock()
}

type harness struct {
	m      *Manager
	store  *state.Store
	d      *fakeDaemon
	p      *fakeProcess
	fg     *fakeForeground
	alive  *aliveSet
	events *MemoryPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	d := &fakeDaemon{}
	h := &harness{
		store:  state.NewStore(filepath.Join(t.TempDir(), "models.json")),
		d:      d,
		p:      &fakeProcess{d: d},
		fg:     &fakeForeground{},
		alive:  newAliveSet(daemonPID),
		events: NewMemoryPublisher(),
	}
	h.m = NewWithConfig(ManagerConfig{
		Store:          h.store,
		Prober:         h.alive,
		Daemon:         h.d,
		Process:        h.p,
		Foreground:     h.fg,
		MemoryPath:     func() (string, error) { return "/mem", nil },
		DaemonAddr:     "127.0.0.1:6969",
		PollInterval:   time.Millisecond,
		PollAttempts:   3,
		ForegroundHint: "install it",
		Publisher:      h.events,
	})
	return h
}

func mustLoad(t *testing.T, text string) *modelfile.Modelfile {
	t.Helper()
	mf, err := modelfile.Load(text)
	require.NoError(t, err)
	return mf
}

func (h *harness) seed(t *testing.T, name, model string, pid int) {
	t.Helper()
	err := h.store.Update(context.Background(), func(r *state.Registry) error {
		r.Add(name, model, pid)
		return nil
	})
	require.NoError(t, err, "seed")
}

func (h *harness) records(t *testing.T) map[string]state.Record {
	t.Helper()
	reg, err := state.Load(h.store.Path)
	require.NoError(t, err, "load state")
	return reg.Models
}
