//go:build unix

package state

import (
	"errors"
	"math"

	"golang.org/x/sys/unix"
)

// Alive sends signal 0 to pid. EPERM means the process exists but belongs to
// someone else, which still counts as alive. pids outside pid_t are never alive.
func (ProcessProber) Alive(pid int) bool {
	if pid <= 0 || int64(pid) > math.MaxInt32 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
