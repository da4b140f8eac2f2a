package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	confirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_confirmations_total",
			Help: "Confirm calls by outcome",
		},
		[]string{"outcome"},
	)

	fulfillmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_fulfillments_total",
			Help: "Fulfillment writes by campaign type and result",
		},
		[]string{"campaign_type", "result"},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Duration of payment gateway calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)

	sweepTransitionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_sweep_transitions_total",
			Help: "Transactions moved by the reconciliation sweep",
		},
	)

	sweepErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_sweep_errors_total",
			Help: "Per-reference errors collected by the reconciliation sweep",
		},
	)
)
