// Package manager drives the lifecycle of named models: run, stop and list,
// plus starting and stopping the shared daemon. It is structured into small
// files by concern:
//
//   - manager.go: core Manager type, Run/Stop/List.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: Outcome and the collaborator interfaces (Daemon, DaemonProcess, Foreground).
//   - daemon_ops.go: daemon readiness polling, StartDaemon/StopDaemon.
//   - errors.go: error types and helpers (IsConflict, IsNotFound, ...).
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: prometheus collectors.
//   - sanity.go: dependency report for `tiles health`.
//
// Every operation runs its read-modify-write of the registry file under the
// store's file lock, so concurrent CLI invocations serialize. Run holds the
// lock across daemon spawn and load; a second run waits rather than spawning
// a second daemon. Foreground models are handed over after the lock is
// released.
package manager
