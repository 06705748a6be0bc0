//go:build !unix

package state

// Alive always reports false where no signal-0 probe exists.
func (ProcessProber) Alive(pid int) bool { return false }
