package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ledgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dgt",
	Subsystem: "ledger",
	Name:      "operations_total",
	Help:      "Ledger mutations by operation and result.",
}, []string{"operation", "result"})

var ledgerVolume = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dgt",
	Subsystem: "ledger",
	Name:      "volume_total",
	Help:      "Absolute DGT moved by confirmed entries, by entry kind.",
}, []string{"kind"})

var ledgerOperationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "dgt",
	Subsystem: "ledger",
	Name:      "operation_duration_seconds",
	Help:      "Latency of ledger mutations including commit.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation"})

var orderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dgt",
	Subsystem: "orders",
	Name:      "transitions_total",
	Help:      "Order state transitions by kind and target status.",
}, []string{"kind", "status"})

var webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dgt",
	Subsystem: "webhook",
	Name:      "events_total",
	Help:      "Processed webhook events by type and outcome.",
}, []string{"type", "outcome"})

var rateGuardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dgt",
	Subsystem: "rate_guard",
	Name:      "decisions_total",
	Help:      "Rate guard decisions by action and reason.",
}, []string{"action", "reason"})

// resultLabel keeps the label set small: ok, rejected or error
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsValidationError(err), IsNotFound(err),
		errors.Is(err, ErrAlreadyReversed), errors.Is(err, ErrInvalidReversal):
		return "rejected"
	}
	return "error"
}
