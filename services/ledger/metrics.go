package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeApplied   = "applied"
	outcomeDuplicate = "duplicate"
	outcomeSkipped   = "skipped"
	outcomeRejected  = "rejected"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "points_ledger_events_total",
		Help: "Points events by transaction type and outcome.",
	}, []string{"type", "outcome"})

	applySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "points_ledger_apply_seconds",
		Help:    "Latency of the ledger write transaction.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)
