package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts dispatcher outcomes. Registered against the registry the
// daemon serves on /metrics.
type Metrics struct {
	EventsDispatched *prometheus.CounterVec
	RepliesPosted    prometheus.Counter
	DeliveryFailures prometheus.Counter
	ResponderErrors  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Events pulled off the bus and dispatched, by source and kind.",
		}, []string{"source", "kind"}),
		RepliesPosted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "dispatch",
			Name:      "replies_posted_total",
			Help:      "Replies successfully posted back to the originating platform.",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "dispatch",
			Name:      "delivery_failures_total",
			Help:      "Replies drafted but not delivered because the platform post failed.",
		}),
		ResponderErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "dispatch",
			Name:      "responder_errors_total",
			Help:      "Reasoning engine invocations that returned an error.",
		}),
	}
}
