package state

// Prober answers whether a process id currently refers to a live process.
type Prober interface {
	Alive(pid int) bool
}

// ProcessProber probes the operating system process table.
type ProcessProber struct{}

// ProberFunc adapts a function to Prober.
type ProberFunc func(pid int) bool

func (f ProberFunc) Alive(pid int) bool { return f(pid) }

// Reconcile removes every record whose pid is not alive and returns the
// evicted records. Records whose pid is alive are kept, even if the pid has
// since been reused by an unrelated process.
func Reconcile(reg *Registry, p Prober) []Record {
	var evicted []Record
	for _, rec := range reg.List() {
		if p.Alive(rec.PID) {
			continue
		}
		reg.Remove(rec.Name)
		evicted = append(evicted, rec)
	}
	return evicted
}
