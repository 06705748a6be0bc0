package manager

import (
	"context"

	"tiles/internal/modelfile"
	"tiles/internal/state"
)

// Mode says where a run ended up.
type Mode string

const (
	// ModeDaemon: the model was loaded into the shared daemon and registered.
	ModeDaemon Mode = "daemon"
	// ModeForeground: the model ran as a foreground subprocess; nothing was registered.
	ModeForeground Mode = "foreground"
)

// Outcome is the result of a successful Run.
type Outcome struct {
	Mode Mode
	// Record is set for ModeDaemon.
	Record state.Record
	// Spawned reports whether this run had to start the daemon.
	Spawned bool
}

// Daemon is the daemon's request API.
type Daemon interface {
	Ping(ctx context.Context) error
	Load(ctx context.Context, model, memoryPath string) error
}

// DaemonProcess controls the daemon's process and its pid marker.
type DaemonProcess interface {
	Start(ctx context.Context) (int, error)
	Stop(ctx context.Context) error
	PID() (int, error)
}

// Foreground runs a non-daemon model attached to the terminal.
type Foreground interface {
	Run(ctx context.Context, mf *modelfile.Modelfile) error
}
