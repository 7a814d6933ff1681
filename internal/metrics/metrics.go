// file: internal/metrics/metrics.go

package metrics

import (
	"runtime"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine run-loop states exported via the engine_state gauge.
const (
	EngineStateIdle = iota
	EngineStateRunning
	EngineStateStopRequested
	EngineStateStopped
)

// Metrics provides centralized metrics collection for the RELP input
type Metrics struct {
	registry *prometheus.Registry

	// Event processing metrics
	eventsTotal      *prometheus.CounterVec
	eventsByListener *prometheus.CounterVec
	eventsDropped    prometheus.Counter
	submitFailures   prometheus.Counter

	// Listener/engine metrics
	listenersActive prometheus.Gauge
	engineState     prometheus.Gauge

	// NATS connection metrics
	natsConnectionStatus prometheus.Gauge
	natsReconnects       prometheus.Counter

	// System metrics
	goroutines  prometheus.Gauge
	memoryBytes prometheus.Gauge

	// Internal counters for atomic operations
	stats struct {
		eventsReceived uint64
		eventsError    uint64
	}
}

// NewMetrics creates a new metrics instance with all collectors registered
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,

		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relp_events_total",
				Help: "Total number of received events by status",
			},
			[]string{"status"},
		),
		eventsByListener: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relp_listener_events_total",
				Help: "Total number of received events by listener port",
			},
			[]string{"port"},
		),
		eventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relp_events_dropped_total",
				Help: "Total number of events dropped by the pipeline queue",
			},
		),
		submitFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relp_submit_failures_total",
				Help: "Total number of failed downstream submissions",
			},
		),
		listenersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relp_listeners_active",
				Help: "Number of finalized listeners",
			},
		),
		engineState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relp_engine_state",
				Help: "Engine run-loop state (0 idle, 1 running, 2 stop requested, 3 stopped)",
			},
		),
		natsConnectionStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nats_connection_status",
				Help: "NATS connection status (1 = connected, 0 = disconnected)",
			},
		),
		natsReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "nats_reconnects_total",
				Help: "Total number of NATS reconnections",
			},
		),
		goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "process_goroutines",
				Help: "Number of goroutines",
			},
		),
		memoryBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "process_memory_bytes",
				Help: "Process memory usage in bytes",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.eventsTotal,
		m.eventsByListener,
		m.eventsDropped,
		m.submitFailures,
		m.listenersActive,
		m.engineState,
		m.natsConnectionStatus,
		m.natsReconnects,
		m.goroutines,
		m.memoryBytes,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// GetRegistry returns the Prometheus registry (needed for HTTP handler)
func (m *Metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

// IncEventsTotal counts a received event by status ("received", "error")
func (m *Metrics) IncEventsTotal(status string) {
	m.eventsTotal.WithLabelValues(status).Inc()
	switch status {
	case "received":
		atomic.AddUint64(&m.stats.eventsReceived, 1)
	case "error":
		atomic.AddUint64(&m.stats.eventsError, 1)
	}
}

// IncListenerEvents counts a received event against its listener port
func (m *Metrics) IncListenerEvents(port string) {
	m.eventsByListener.WithLabelValues(port).Inc()
}

// IncEventsDropped counts an event discarded by the pipeline queue
func (m *Metrics) IncEventsDropped() {
	m.eventsDropped.Inc()
}

// IncSubmitFailures counts a failed downstream submission
func (m *Metrics) IncSubmitFailures() {
	m.submitFailures.Inc()
}

// SetListenersActive records the number of finalized listeners
func (m *Metrics) SetListenersActive(n float64) {
	m.listenersActive.Set(n)
}

// SetEngineState records the run-loop state
func (m *Metrics) SetEngineState(state float64) {
	m.engineState.Set(state)
}

// SetNATSConnectionStatus records connection health
func (m *Metrics) SetNATSConnectionStatus(connected bool) {
	if connected {
		m.natsConnectionStatus.Set(1)
	} else {
		m.natsConnectionStatus.Set(0)
	}
}

// IncNATSReconnects counts a reconnection
func (m *Metrics) IncNATSReconnects() {
	m.natsReconnects.Inc()
}

// UpdateSystemMetrics refreshes goroutine and memory gauges
func (m *Metrics) UpdateSystemMetrics() {
	m.goroutines.Set(float64(runtime.NumGoroutine()))
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.memoryBytes.Set(float64(memStats.Alloc))
}

// EventsReceived returns the atomic received-event count
func (m *Metrics) EventsReceived() uint64 {
	return atomic.LoadUint64(&m.stats.eventsReceived)
}

// EventsErrored returns the atomic errored-event count
func (m *Metrics) EventsErrored() uint64 {
	return atomic.LoadUint64(&m.stats.eventsError)
}
