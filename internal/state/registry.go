// Package state persists the registry of running models across CLI invocations.
//
// The registry is a single JSON document keyed by model name. It is loaded and
// saved whole; Store adds an advisory file lock around read-modify-write cycles
// so that concurrent invocations do not lose each other's updates.
package state

import (
	"sort"
	"time"
)

// TimeLayout is the format of Record.StartedAt (local time).
const TimeLayout = "2006-01-02 15:04:05"

// Record describes one running, daemon-resident model.
type Record struct {
	Name      string `json:"name"`
	ModelID   string `json:"model_id"`
	PID       int    `json:"pid"`
	StartedAt string `json:"started_at"`
}

// Registry maps model name to its record. A name maps to at most one record.
type Registry struct {
	Models map[string]Record `json:"models"`

	now func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{Models: make(map[string]Record)}
}

// Add inserts (or replaces) the record for name, stamped with the current local time.
func (r *Registry) Add(name, modelID string, pid int) Record {
	if r.Models == nil {
		r.Models = make(map[string]Record)
	}
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	rec := Record{Name: name, ModelID: modelID, PID: pid, StartedAt: now().Format(TimeLayout)}
	r.Models[name] = rec
	return rec
}

// Remove deletes and returns the record for name.
func (r *Registry) Remove(name string) (Record, bool) {
	rec, ok := r.Models[name]
	if ok {
		delete(r.Models, name)
	}
	return rec, ok
}

// Get returns the record for name.
func (r *Registry) Get(name string) (Record, bool) {
	rec, ok := r.Models[name]
	return rec, ok
}

// List returns all records. Callers must not rely on the order; it happens
// to be sorted by name to keep CLI output stable.
func (r *Registry) List() []Record {
	out := make([]Record, 0, len(r.Models))
	for _, rec := range r.Models {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsEmpty reports whether no model is registered.
func (r *Registry) IsEmpty() bool { return len(r.Models) == 0 }

// Len returns the number of records.
func (r *Registry) Len() int { return len(r.Models) }
