package gpio

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "gpioremote"

var (
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "Commands handled, by outcome (sent, rejected, dropped).",
		},
		[]string{"outcome"},
	)

	telemetryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "telemetry_frames_total",
			Help:      "Inbound device frames, by reading kind and routing outcome.",
		},
		[]string{"kind", "outcome"},
	)

	connectionsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_opened_total",
			Help:      "Device connections opened by reconciliation, including replacements.",
		},
	)
)

var connectionsDesc = prometheus.NewDesc(
	prometheus.BuildFQName(metricsNamespace, "", "connections"),
	"Device connections currently tracked, by state.",
	[]string{"state"}, nil,
)

// connectionCollector reports the manager's table at scrape time.
type connectionCollector struct {
	m *Manager
}

// Collector returns a Prometheus collector exposing the connection table
// as a gauge per state.
func (m *Manager) Collector() prometheus.Collector {
	return connectionCollector{m: m}
}

func (c connectionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- connectionsDesc
}

func (c connectionCollector) Collect(ch chan<- prometheus.Metric) {
	counts := map[ConnState]int{StateConnecting: 0, StateOpen: 0, StateClosed: 0, StateFaulted: 0}
	for _, s := range c.m.Snapshot() {
		counts[s.State]++
	}
	for st, n := range counts {
		ch <- prometheus.MustNewConstMetric(connectionsDesc, prometheus.GaugeValue, float64(n), st.String())
	}
}

// RegisterMetrics registers the command, telemetry and connection metrics
// on reg. The counters are shared by every bridge in the process, so a
// registry takes one bridge only.
func (b *Bridge) RegisterMetrics(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		commandsTotal,
		telemetryTotal,
		connectionsOpened,
		b.manager.Collector(),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("registering bridge metrics: %w", err)
		}
	}
	return nil
}
