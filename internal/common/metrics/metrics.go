// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WizardTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_transitions_total",
			Help: "Wizard transitions by kind, action and outcome",
		},
		[]string{"kind", "action", "outcome"},
	)

	WizardSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_submissions_total",
			Help: "Submission attempts by wizard kind and result kind",
		},
		[]string{"kind", "result"},
	)

	WizardSubmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wizard_submission_duration_seconds",
			Help:    "Duration of submission round trips in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	WizardSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wizard_sessions_active",
			Help: "Number of live wizard sessions",
		},
	)

	MunicipalityLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "municipality_lookups_total",
			Help: "Municipality lookups by source (short, l1, l2, resolver)",
		},
		[]string{"source"},
	)

	MunicipalityLookupErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "municipality_lookup_errors_total",
			Help: "Municipality resolver failures degraded to empty results",
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Proposal notifications by channel and status",
		},
		[]string{"channel", "status"},
	)
)
