// Package metrics exposes reconciler observations in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ucscslugworks/bambu-printer-automations/internal/engine"
	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

// Collector implements engine.Metrics on top of a Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	cyclesCompleted prometheus.Counter
	cycleDuration   prometheus.Histogram
	cyclesFailed    *prometheus.CounterVec
	writesFailed    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	slotStatus      *prometheus.GaugeVec
}

// NewCollector builds a collector with its own registry so tests can
// construct several without duplicate-registration panics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cyclesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconciler_cycles_completed_total",
			Help: "Total number of reconciliation cycles completed",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reconciler_cycle_duration_seconds",
			Help:    "Reconciliation cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		cyclesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciler_cycles_failed_total",
			Help: "Total number of cycles that failed, by stage",
		}, []string{"stage"}),
		writesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciler_writes_failed_total",
			Help: "Total number of failed table writes, by table",
		}, []string{"table"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciler_transitions_total",
			Help: "Total committed state transitions, by kind and target state",
		}, []string{"kind", "to"}),
		slotStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reconciler_slot_status",
			Help: "Current device slot status as an enum value",
		}, []string{"printer"}),
	}

	c.registry.MustRegister(
		c.cyclesCompleted,
		c.cycleDuration,
		c.cyclesFailed,
		c.writesFailed,
		c.transitions,
		c.slotStatus,
	)
	return c
}

// CycleCompleted records a finished cycle and its duration.
func (c *Collector) CycleCompleted(d time.Duration) {
	c.cyclesCompleted.Inc()
	c.cycleDuration.Observe(d.Seconds())
}

// CycleFailed records a cycle abandoned at the given stage.
func (c *Collector) CycleFailed(stage engine.Stage) {
	c.cyclesFailed.WithLabelValues(string(stage)).Inc()
}

// WriteFailed records a failed write of one booking-store table.
func (c *Collector) WriteFailed(table string) {
	c.writesFailed.WithLabelValues(table).Inc()
}

// SlotStatus records the current status of a device slot.
func (c *Collector) SlotStatus(printerName string, status sheet.SlotStatus) {
	c.slotStatus.WithLabelValues(printerName).Set(float64(status))
}

// Transition records one committed state transition.
func (c *Collector) Transition(kind, to string) {
	c.transitions.WithLabelValues(kind, to).Inc()
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr. Blocks until the server fails.
func (c *Collector) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return http.ListenAndServe(addr, mux)
}
