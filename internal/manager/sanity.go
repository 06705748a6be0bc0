package manager

import (
	"context"
	"os/exec"
	"strconv"
)

// Dependency is an external executable tiles needs at runtime.
type Dependency struct {
	Bin  string
	Hint string
}

// Check is one line of a SanityReport.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
	Hint   string `json:"hint,omitempty"`

	// Optional checks are reported but do not fail the report.
	Optional bool `json:"optional,omitempty"`
}

// SanityReport describes runtime checks for external dependencies.
type SanityReport struct {
	Checks []Check `json:"checks"`
}

// OK reports whether every required check passed.
func (r SanityReport) OK() bool {
	for _, c := range r.Checks {
		if !c.OK && !c.Optional {
			return false
		}
	}
	return true
}

var lookPath = exec.LookPath

// SanityCheck validates that required external binaries are available and
// whether the daemon answers. It does not mutate state and is safe to call
// at any time.
func (m *Manager) SanityCheck(ctx context.Context) SanityReport {
	var r SanityReport
	for _, dep := range m.dependencies {
		c := Check{Name: dep.Bin}
		if p, err := lookPath(dep.Bin); err == nil {
			c.OK = true
			c.Detail = p
		} else {
			c.Detail = "not found on PATH"
			c.Hint = dep.Hint
		}
		r.Checks = append(r.Checks, c)
	}

	c := Check{Name: "daemon", Optional: true}
	if err := m.daemon.Ping(ctx); err == nil {
		c.OK = true
		c.Detail = "reachable at " + m.daemonAddr
		if pid, err := m.process.PID(); err == nil {
			c.Detail += " (pid " + strconv.Itoa(pid) + ")"
		}
	} else {
		c.Detail = "not reachable at " + m.daemonAddr
		c.Hint = "start it with: tiles start"
	}
	r.Checks = append(r.Checks, c)
	return r
}
