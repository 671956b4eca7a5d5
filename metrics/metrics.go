// Package metrics exposes Prometheus instrumentation for the
// connection engine and the server multiplexer: per-connection gauges
// and server-wide counters, registered on a dedicated registry so the
// caller can serve them on whichever mux it likes.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector this module publishes, all registered
// against a private registry to avoid colliding with anything else the
// host process registers on the default one.
type Metrics struct {
	Registry *prometheus.Registry

	ConnectionRTT        *prometheus.GaugeVec
	ConnectionPacketLoss *prometheus.GaugeVec
	ConnectionCongested  *prometheus.GaugeVec

	PacketsSentTotal   prometheus.Counter
	PacketsLostTotal   prometheus.Counter
	ConnectionsActive  prometheus.Gauge
}

// New builds and registers the full collector set.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		ConnectionRTT: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_connection_rtt_ms",
			Help: "Smoothed round-trip time per connection, in milliseconds.",
		}, []string{"connection_id"}),
		ConnectionPacketLoss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_connection_packet_loss_percent",
			Help: "Sliding-window packet loss ratio per connection, as a percentage.",
		}, []string{"connection_id"}),
		ConnectionCongested: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_connection_congested",
			Help: "1 if the connection's RTT currently exceeds the congestion threshold, else 0.",
		}, []string{"connection_id"}),
		PacketsSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_packets_sent_total",
			Help: "Total datagrams sent across all connections.",
		}),
		PacketsLostTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_packets_lost_total",
			Help: "Total datagrams judged lost across all connections.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections_active",
			Help: "Number of connections currently open (not Closed or Lost).",
		}),
	}

	reg.MustRegister(
		m.ConnectionRTT,
		m.ConnectionPacketLoss,
		m.ConnectionCongested,
		m.PacketsSentTotal,
		m.PacketsLostTotal,
		m.ConnectionsActive,
	)
	return m
}

// ObserveConnection updates the per-connection gauges for one tick.
func (m *Metrics) ObserveConnection(connID uint32, rttMS int64, lossPercent float64, congested bool) {
	label := strconv.FormatUint(uint64(connID), 10)
	m.ConnectionRTT.WithLabelValues(label).Set(float64(rttMS))
	m.ConnectionPacketLoss.WithLabelValues(label).Set(lossPercent)
	c := 0.0
	if congested {
		c = 1.0
	}
	m.ConnectionCongested.WithLabelValues(label).Set(c)
}

// DropConnection removes a connection's per-id gauge series once it is
// reset or removed from the server's table, so stale series don't
// accumulate across reconnects.
func (m *Metrics) DropConnection(connID uint32) {
	label := strconv.FormatUint(uint64(connID), 10)
	m.ConnectionRTT.DeleteLabelValues(label)
	m.ConnectionPacketLoss.DeleteLabelValues(label)
	m.ConnectionCongested.DeleteLabelValues(label)
}
