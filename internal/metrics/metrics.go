package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cleanops"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status class.",
		},
		[]string{"endpoint", "code"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Lifecycle operations by outcome code.",
		},
		[]string{"op", "result"},
	)

	assignmentConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignment_conflicts_total",
			Help:      "Assignments rejected because the employee was busy.",
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification outbox events by status.",
		},
		[]string{"channel", "status"},
	)

	locationPings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_pings_total",
			Help:      "Location pings received from employee devices.",
		},
		[]string{"result"},
	)

	outboxFailed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_failed",
			Help:      "Notifications that exhausted their retries.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, transitions, assignmentConflicts, notifications, locationPings, outboxFailed)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

// ObserveTransition records the outcome of a lifecycle operation.
func ObserveTransition(op, result string) {
	transitions.WithLabelValues(op, result).Inc()
}

func IncAssignmentConflict() {
	assignmentConflicts.Inc()
}

func IncNotification(channel, status string) {
	notifications.WithLabelValues(channel, status).Inc()
}

func IncLocationPing(result string) {
	locationPings.WithLabelValues(result).Inc()
}

// SetOutboxFailed reports the current number of dead-lettered notifications.
func SetOutboxFailed(n int) {
	outboxFailed.Set(float64(n))
}
