package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "darasa"

// Scheduled job metrics
var (
	CronRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cron_runs_total",
			Help:      "Total number of scheduled job runs",
		},
		[]string{"job", "status"},
	)

	CronRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cron_run_duration_seconds",
			Help:      "Scheduled job execution time distribution",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"job"},
	)

	CronRunsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cron_runs_skipped_total",
			Help:      "Job fires skipped because the previous run was still in flight",
		},
		[]string{"job"},
	)
)

// Entitlement and quota metrics
var (
	EntitlementDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entitlement_denials_total",
			Help:      "Total number of denied entitlement and quota checks",
		},
		[]string{"reason"},
	)

	QuotaRaceLosses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_race_losses_total",
			Help:      "Atomic quota increments rejected by the conditional update",
		},
		[]string{"kind"},
	)

	SMSSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sms_sent_total",
			Help:      "Total number of SMS sends recorded against quota",
		},
	)
)

// Subscription lifecycle metrics
var (
	PaymentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_processed_total",
			Help:      "Completed subscription payments by purchased tier",
		},
		[]string{"tier"},
	)

	SubscriptionsDowngraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_downgraded_total",
			Help:      "Schools downgraded to free after expiry plus grace",
		},
	)

	ReferralsConverted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referrals_converted_total",
			Help:      "Referral records converted by a first payment",
		},
	)

	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewal_reminders_total",
			Help:      "Renewal reminder notifications by bucket and outcome",
		},
		[]string{"bucket", "status"},
	)
)

// Rate limiter metrics
var (
	RateLimitBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_blocks_total",
			Help:      "Attempts denied because the identifier is in cool-down",
		},
	)
)
