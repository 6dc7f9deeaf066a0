package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jw238ddns"

var tickCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "ticks_total",
	Help:      "Counter of reconciliation ticks by outcome.",
}, []string{"outcome"})

var pushCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "pushes_total",
	Help:      "Counter of per-record pushes by record type and result.",
}, []string{"type", "result"})

var lastPushGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "last_push_timestamp_seconds",
	Help:      "Unix time of the last push pass.",
})

var storeRecordGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "reconcile",
	Name:      "store_records",
	Help:      "Number of records seen by the last push pass.",
})

const (
	outcomeSkipped    = "skipped"
	outcomePushed     = "pushed"
	outcomeListFailed = "list_failed"

	resultSuccess = "success"
	resultFailure = "failure"
)
