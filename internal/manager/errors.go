package manager

import (
	"errors"
	"fmt"
)

// conflictError signals that a live record already exists for the name.
type conflictError struct {
	name string
	pid  int
}

func (e conflictError) Error() string {
	return fmt.Sprintf("model %q is already running (pid %d); stop it first with: tiles stop %s", e.name, e.pid, e.name)
}

// ErrConflict constructs a conflictError.
func ErrConflict(name string, pid int) error { return conflictError{name: name, pid: pid} }

// IsConflict reports whether err indicates the name is already registered and alive.
func IsConflict(err error) bool {
	var e conflictError
	return errors.As(err, &e)
}

// notFoundError signals a stop request for a name with no live record.
type notFoundError struct{ name string }

func (e notFoundError) Error() string {
	return fmt.Sprintf("model %q is not running; see running models with: tiles ls", e.name)
}

// ErrNotFound constructs a notFoundError.
func ErrNotFound(name string) error { return notFoundError{name: name} }

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// daemonTimeoutError signals that the daemon did not answer the liveness
// probe within the poll budget.
type daemonTimeoutError struct {
	addr     string
	attempts int
}

func (e daemonTimeoutError) Error() string {
	return fmt.Sprintf("daemon at %s not reachable after %d attempts; check the server with: tiles health", e.addr, e.attempts)
}

// ErrDaemonTimeout constructs a daemonTimeoutError.
func ErrDaemonTimeout(addr string, attempts int) error {
	return daemonTimeoutError{addr: addr, attempts: attempts}
}

// IsDaemonTimeout reports whether err indicates an unreachable daemon.
func IsDaemonTimeout(err error) bool {
	var e daemonTimeoutError
	return errors.As(err, &e)
}

// daemonRequestError signals that the daemon refused or failed a request.
type daemonRequestError struct {
	op    string
	model string
	err   error
}

func (e daemonRequestError) Error() string {
	return fmt.Sprintf("daemon %s %q failed: %v; restart the server with: tiles stop --server && tiles start", e.op, e.model, e.err)
}

func (e daemonRequestError) Unwrap() error { return e.err }

// ErrDaemonRequestFailed constructs a daemonRequestError.
func ErrDaemonRequestFailed(op, model string, err error) error {
	return daemonRequestError{op: op, model: model, err: err}
}

// IsDaemonRequestFailed reports whether err indicates a failed daemon request.
func IsDaemonRequestFailed(err error) bool {
	var e daemonRequestError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing external dependency (uv, the
// chat executable).
type dependencyUnavailableError struct {
	msg string
	err error
}

func (e dependencyUnavailableError) Error() string { return e.msg }

func (e dependencyUnavailableError) Unwrap() error { return e.err }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string, err error) error {
	return dependencyUnavailableError{msg: msg, err: err}
}

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// modelsRunningError signals a daemon stop request while models are registered.
type modelsRunningError struct{ names []string }

func (e modelsRunningError) Error() string {
	return fmt.Sprintf("%d model(s) still running %v; stop them first or use --force", len(e.names), e.names)
}

// IsModelsRunning reports whether err refused a daemon stop because models are registered.
func IsModelsRunning(err error) bool {
	var e modelsRunningError
	return errors.As(err, &e)
}
