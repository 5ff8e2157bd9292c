// Package metrics holds the Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RegistryPages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registersync_registry_pages_total",
			Help: "Upstream page requests by outcome",
		},
		[]string{"outcome"}, // ok, timeout, http, transport, decode, canceled
	)

	RegistryPageSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "registersync_registry_page_seconds",
			Help:    "Latency of upstream page requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	FetchDays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registersync_fetch_days_total",
			Help: "Fetch units by final status",
		},
		[]string{"status"},
	)

	SnapshotWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registersync_snapshot_writes_total",
			Help: "Raw snapshot writes by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	ProcessFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registersync_process_files_total",
			Help: "Raw artifacts handled by the processor",
		},
		[]string{"outcome"}, // merged, skipped, failed
	)

	DocumentsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registersync_documents_submitted_total",
			Help: "Documents handed to the canonical store",
		},
	)

	UpsertSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "registersync_upsert_seconds",
			Help:    "Duration of one batch upsert",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registersync_runs_total",
			Help: "Pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	LastSuccessfulRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registersync_last_successful_run_timestamp_seconds",
			Help: "Unix time of the last run that finished both phases",
		},
	)
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
