package backend

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "live_sessions",
		Subsystem: "hub",
		Help:      "Number of open websocket sessions.",
	})

	rosterSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "roster_size",
		Subsystem: "hub",
		Help:      "Number of users currently in the roster.",
	})

	reportCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "position_reports",
		Subsystem: "hub",
		Help:      "Total accepted position reports.",
	})

	broadcastCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "events_broadcast",
		Subsystem: "hub",
		Help:      "Total events delivered to session queues.",
	})

	droppedEventCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "events_dropped",
		Subsystem: "hub",
		Help:      "Events dropped because a session queue was full or closed.",
	})

	protocolErrorCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "protocol_errors",
		Subsystem: "hub",
		Help:      "Rejected packets (malformed or out-of-range reports).",
	})
)

func init() {
	prometheus.MustRegister(sessionCount)
	prometheus.MustRegister(rosterSize)
	prometheus.MustRegister(reportCount)
	prometheus.MustRegister(broadcastCount)
	prometheus.MustRegister(droppedEventCount)
	prometheus.MustRegister(protocolErrorCount)
}
