package manager

import (
	"slices"
	"sync"
)

// MemoryPublisher records lifecycle events in publish order so callers can
// assert the sequence a run or stop produced.
type MemoryPublisher struct {
	mu  sync.Mutex
	log []Event
}

func NewMemoryPublisher() *MemoryPublisher { return new(MemoryPublisher) }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, e)
}

// Events returns a copy of everything recorded so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.log)
}

// For returns the events recorded against one model name.
func (p *MemoryPublisher) For(model string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.log {
		if e.Model == model {
			out = append(out, e)
		}
	}
	return out
}

// Names returns the event names in order.
func (p *MemoryPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.log))
	for i, e := range p.log {
		out[i] = e.Name
	}
	return out
}
