// Package metrics exposes Prometheus instrumentation for the splitter,
// sizer, and storage adapter.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Sizer metrics
	AnalyzeTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checksplit_sizer_analyze_total",
			Help: "Total number of Sizer.Analyze calls",
		},
	)

	ExceedsThresholdTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checksplit_sizer_exceeds_threshold_total",
			Help: "Total number of records found to exceed the size threshold",
		},
	)

	// Splitter metrics
	SplitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checksplit_splits_total",
			Help: "Total number of sharded writes by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	ShardsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checksplit_shards_written_total",
			Help: "Total number of individual shard records written",
		},
		[]string{"strategy"},
	)

	RollbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checksplit_rollbacks_total",
			Help: "Total number of shard-set writes that were rolled back",
		},
	)

	RetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checksplit_shard_write_retries_total",
			Help: "Total number of shard write attempts beyond the first",
		},
	)

	PutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checksplit_put_duration_seconds",
			Help:    "Time taken by the storage adapter to complete Put",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Reassembly metrics
	ReassemblyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checksplit_reassembly_duration_seconds",
			Help:    "Time taken to reassemble a sharded record by outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	ChecksumMismatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checksplit_checksum_mismatches_total",
			Help: "Total number of shard checksum mismatches detected during reassembly",
		},
	)

	PartsMissingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checksplit_parts_missing_total",
			Help: "Total number of reassembly attempts that found fewer parts than expected",
		},
	)

	// Adapter-level metrics
	ListSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checksplit_list_skipped_total",
			Help: "Total number of records skipped by List due to failed reassembly",
		},
	)

	DeleteThreadRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checksplit_delete_thread_records_total",
			Help: "Total number of records removed across all DeleteThread calls",
		},
	)
)

func init() {
	prometheus.MustRegister(
		AnalyzeTotal,
		ExceedsThresholdTotal,
		SplitsTotal,
		ShardsWrittenTotal,
		RollbacksTotal,
		RetriesTotal,
		PutDuration,
		ReassemblyDuration,
		ChecksumMismatchesTotal,
		PartsMissingTotal,
		ListSkippedTotal,
		DeleteThreadRecordsTotal,
	)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
