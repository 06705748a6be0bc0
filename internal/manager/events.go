package manager

// Event names published by the manager.
const (
	EventRunStart         = "run_start"
	EventRunConflict      = "run_conflict"
	EventRunForeground    = "run_foreground"
	EventDaemonSpawn      = "daemon_spawn"
	EventDaemonReady      = "daemon_ready"
	EventDaemonTimeout    = "daemon_timeout"
	EventLoadFailed       = "load_failed"
	EventRunRegistered    = "run_registered"
	EventStaleEvicted     = "stale_evicted"
	EventStopDone         = "stop_done"
	EventStopNotFound     = "stop_not_found"
	EventDaemonStop       = "daemon_stop"
	EventDaemonStopFailed = "daemon_stop_failed"
)

// Event represents a manager lifecycle event.
// Minimal and stable: name + model name and optional fields via key/values.
type Event struct {
	Name   string
	Model  string
	Fields map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

func (m *Manager) publish(name, model string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	m.publisher.Publish(Event{Name: name, Model: model, Fields: fields})
}
