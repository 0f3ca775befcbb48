// Package metrics exposes the Prometheus collectors of the cash register.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpos_http_requests_total",
			Help: "HTTP requests handled, by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parkpos_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Session transitions, accepted or rejected.
	SessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpos_session_transitions_total",
			Help: "Attempted cash session operations",
		},
		[]string{"action", "result"},
	)

	TransactionsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpos_transactions_recorded_total",
			Help: "Ledger transactions accepted, by type",
		},
		[]string{"type"},
	)

	TransactionAmountCents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpos_transaction_amount_cents_total",
			Help: "Sum of accepted transaction amounts in cents, by type",
		},
		[]string{"type"},
	)

	SessionOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "parkpos_session_open",
			Help: "1 while a cash session is open",
		},
	)

	OccupiedSpots = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parkpos_occupied_spots",
			Help: "Vehicles currently inside, by category",
		},
		[]string{"category"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpos_events_published_total",
			Help: "Session events handed to the queue, by result",
		},
		[]string{"result"},
	)

	EventsDeadLettered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parkpos_events_dead_lettered_total",
			Help: "Session events moved to the dead letter queue",
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parkpos_circuit_breaker_state",
			Help: "0 closed, 1 open, 2 half-open",
		},
		[]string{"name"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SessionTransitions,
		TransactionsRecorded,
		TransactionAmountCents,
		SessionOpen,
		OccupiedSpots,
		EventsPublished,
		EventsDeadLettered,
		CircuitBreakerState,
	)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Result labels an attempted operation.
func Result(err error) string {
	if err != nil {
		return "rejected"
	}
	return "accepted"
}
