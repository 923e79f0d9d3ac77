package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coda_records_emitted_total",
		Help: "Total records handed to the sink by stream",
	}, []string{"stream"})

	recordsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coda_records_dropped_total",
		Help: "Total records dropped during transformation by stream",
	}, []string{"stream"})

	streamFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coda_stream_failures_total",
		Help: "Total contained stream failures by stream and error class",
	}, []string{"stream", "error_class"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coda_run_duration_seconds",
		Help:    "Duration of extraction runs by outcome",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	}, []string{"outcome"})
)
