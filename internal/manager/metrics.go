package manager

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels for tiles_lifecycle_operations_total.
const (
	opRun         = "run"
	opStop        = "stop"
	opList        = "list"
	opStartDaemon = "start_daemon"
	opStopDaemon  = "stop_daemon"
)

type metrics struct {
	operations *prometheus.CounterVec
	evictions  prometheus.Counter
	spawns     prometheus.Counter
	models     prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tiles",
				Subsystem: "lifecycle",
				Name:      "operations_total",
				Help:      "Lifecycle operations by outcome",
			},
			[]string{"op", "result"},
		),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tiles",
			Subsystem: "registry",
			Name:      "evictions_total",
			Help:      "Registry records evicted because their process was gone",
		}),
		spawns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tiles",
			Subsystem: "daemon",
			Name:      "spawns_total",
			Help:      "Daemon processes spawned",
		}),
		models: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tiles",
			Subsystem: "registry",
			Name:      "models",
			Help:      "Registered models after the last operation",
		}),
	}
	reg.MustRegister(m.operations, m.evictions, m.spawns, m.models)
	return m
}

// observe records the outcome of op.
func (m *metrics) observe(op string, err error) {
	m.operations.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsConflict(err):
		return "conflict"
	case IsNotFound(err):
		return "not_found"
	case IsDaemonTimeout(err):
		return "daemon_timeout"
	case IsDaemonRequestFailed(err):
		return "request_failed"
	case IsDependencyUnavailable(err):
		return "dependency_unavailable"
	case IsModelsRunning(err):
		return "models_running"
	}
	return "error"
}
