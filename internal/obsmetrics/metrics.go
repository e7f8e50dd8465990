// Package obsmetrics exposes Prometheus counters/gauges for the store
// daemon, grounded on ws/metrics.go.
package obsmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WritesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kv_writes_total",
		Help: "Total number of keys committed by WRITE operations.",
	})
	ReadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kv_reads_total",
		Help: "Total number of keys queried by READ operations.",
	})
	DeletesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kv_deletes_total",
		Help: "Total number of keys removed by DELETE operations.",
	})
	ShowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kv_shows_total",
		Help: "Total number of SHOW snapshots taken.",
	})
	SubscribesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kv_subscribes_total",
		Help: "Total number of successful SUBSCRIBE operations.",
	})
	UnsubscribesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kv_unsubscribes_total",
		Help: "Total number of successful UNSUBSCRIBE operations.",
	})
	NotificationsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kv_notifications_sent_total",
		Help: "Total number of notification frames written to subscriber sinks.",
	})
	NotificationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kv_notifications_dropped_total",
		Help: "Total number of notification frames dropped due to a broken sink.",
	})
	BackupsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kv_backups_started_total",
		Help: "Total number of BACKUP snapshots started.",
	})
	BackupsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kv_backups_completed_total",
		Help: "Total number of BACKUP snapshots completed successfully.",
	})
	BackupsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kv_backups_failed_total",
		Help: "Total number of BACKUP snapshots that failed to write.",
	})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kv_active_sessions",
		Help: "Current number of connected client sessions.",
	})
	JobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kv_job_duration_seconds",
		Help:    "Wall-clock duration of a job file's execution.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
	})
	ResourceCPUPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kv_process_cpu_percent",
		Help: "Sampled process CPU utilization percentage.",
	})
	ResourceMemoryMB = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kv_process_memory_mb",
		Help: "Sampled process resident memory in megabytes.",
	})
)

func init() {
	prometheus.MustRegister(
		WritesTotal, ReadsTotal, DeletesTotal, ShowsTotal,
		SubscribesTotal, UnsubscribesTotal,
		NotificationsSent, NotificationsDropped,
		BackupsStarted, BackupsCompleted, BackupsFailed,
		ActiveSessions, JobDuration,
		ResourceCPUPercent, ResourceMemoryMB,
	)
}

// Handler returns the Prometheus scrape handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
