package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EmailsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolbox_emails_processed_total",
		Help: "Emails fully classified and routed, by category.",
	}, []string{"category"})

	EmailsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolbox_emails_skipped_total",
		Help: "Messages skipped because they were already ingested.",
	})

	EmailsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolbox_emails_failed_total",
		Help: "Per-message pipeline failures, by error kind.",
	}, []string{"kind"})

	ActionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolbox_action_failures_total",
		Help: "Side effects that failed, by action name.",
	}, []string{"action"})

	AutoRepliesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolbox_auto_replies_sent_total",
		Help: "Auto-responses sent by the action router.",
	})

	WaitlistEntriesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolbox_waitlist_entries_created_total",
		Help: "Waitlist entries created from enrollment inquiries.",
	})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "schoolbox_batch_duration_seconds",
		Help:    "Wall time of one scheduler batch pass.",
		Buckets: prometheus.DefBuckets,
	})
)
