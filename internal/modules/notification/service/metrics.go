package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunehub_notifications_enqueued_total",
		Help: "Requests accepted into the batching queue.",
	})
	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunehub_notifications_dropped_total",
		Help: "Requests rejected at ingest.",
	}, []string{"reason"})
	filteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunehub_notifications_filtered_total",
		Help: "Requests removed by recipient preferences.",
	})
	persistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunehub_notifications_persisted_total",
		Help: "Notification rows inserted.",
	})
	requeuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunehub_notifications_requeued_total",
		Help: "Requests put back after a failed flush.",
	})
	deadLetteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunehub_notifications_dead_lettered_total",
		Help: "Requests given up on after the last attempt.",
	})
	queueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tunehub_notifications_queue_length",
		Help: "Requests waiting for a flush.",
	})
	flushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tunehub_notifications_flush_duration_seconds",
		Help:    "Time spent in one non-empty flush.",
		Buckets: prometheus.DefBuckets,
	})
)

const (
	reasonSelf    = "self"
	reasonInvalid = "invalid"
)
