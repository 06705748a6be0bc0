//go:build unix

package daemon

import "syscall"

// detachAttr puts the daemon in its own session so it outlives the CLI.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
