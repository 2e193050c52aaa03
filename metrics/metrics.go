// Package metrics holds the prometheus collectors for the ledger service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ExpensesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitledger",
		Name:      "expenses_created_total",
		Help:      "Expenses recorded, by ledger mode.",
	}, []string{"mode"})

	SharesPaid = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitledger",
		Name:      "shares_paid_total",
		Help:      "Share payments, by outcome (paid, already_paid).",
	}, []string{"outcome"})

	ExpensesSettled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "splitledger",
		Name:      "expenses_settled_total",
		Help:      "Expenses whose last share was paid.",
	})

	SettlementsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "splitledger",
		Name:      "settlements_recorded_total",
		Help:      "Direct settlement payments recorded.",
	})

	LedgerViews = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitledger",
		Name:      "ledger_views_total",
		Help:      "Balance and settlement plan computations, by cache result (hit, miss, disabled).",
	}, []string{"cache"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "splitledger",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		ExpensesCreated,
		SharesPaid,
		ExpensesSettled,
		SettlementsRecorded,
		LedgerViews,
		HTTPRequestDuration,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
