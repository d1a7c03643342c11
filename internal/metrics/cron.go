package metrics

import "time"

// CronRunCompleted records a successful scheduled job run.
func CronRunCompleted(job string, duration time.Duration) {
	CronRunsTotal.WithLabelValues(job, "completed").Inc()
	CronRunDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// CronRunFailed records a failed scheduled job run.
func CronRunFailed(job string, duration time.Duration) {
	CronRunsTotal.WithLabelValues(job, "failed").Inc()
	CronRunDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// CronRunSkipped records a job fire skipped due to a still-running
// previous invocation.
func CronRunSkipped(job string) {
	CronRunsSkipped.WithLabelValues(job).Inc()
}
