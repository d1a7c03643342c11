package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/darasahq/darasa/internal/metrics"
	"github.com/darasahq/darasa/internal/notify"
)

// reminderDaysAhead are the day-granularity look-ahead buckets: one
// reminder each at 7, 3, and 1 day(s) before expiry.
var reminderDaysAhead = []int{7, 3, 1}

// finalNoticeDays is how many days before the end of the grace window the
// final notice goes out.
const finalNoticeDays = 3

// RenewalReminders sends the daily sweep of expiry notifications.
//
// Each bucket is an independent query and loop: expiring in 7/3/1 days,
// expiring today (grace start), and grace ending in finalNoticeDays days.
// A failure sending to one school is recorded and never aborts the batch.
type RenewalReminders struct {
	store    domain.SchoolStore
	notifier notify.Notifier
	grace    time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewRenewalReminders creates the daily reminder job.
func NewRenewalReminders(store domain.SchoolStore, notifier notify.Notifier, grace time.Duration, logger *slog.Logger) *RenewalReminders {
	return &RenewalReminders{
		store:    store,
		notifier: notifier,
		grace:    grace,
		logger:   logger,
		now:      time.Now,
	}
}

// Name returns the job name.
func (j *RenewalReminders) Name() string {
	return JobSendRenewalReminders
}

// Run executes all reminder buckets. Bucket query failures are collected
// and returned together after every bucket has had its chance to run.
func (j *RenewalReminders) Run(ctx context.Context) (domain.JobSummary, error) {
	now := j.now()
	today := startOfDay(now)

	var summary domain.JobSummary
	var queryErrs []error

	// Advance reminders: expiry falls on now+7d, now+3d, now+1d.
	for _, days := range reminderDaysAhead {
		bucket := fmt.Sprintf("expires_in_%dd", days)
		start := today.AddDate(0, 0, days)
		end := start.AddDate(0, 0, 1)

		schools, err := j.store.ListExpiringBetween(ctx, start, end)
		if err != nil {
			queryErrs = append(queryErrs, fmt.Errorf("bucket %s: %w", bucket, err))
			continue
		}
		for _, school := range schools {
			j.record(&summary, bucket, school,
				j.notifier.SendRenewalReminder(ctx, school, days))
		}
	}

	// Grace start: expiry falls today.
	schools, err := j.store.ListExpiringBetween(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		queryErrs = append(queryErrs, fmt.Errorf("bucket expires_today: %w", err))
	} else {
		for _, school := range schools {
			j.record(&summary, "expires_today", school,
				j.notifier.SendGraceNotice(ctx, school))
		}
	}

	// Final notice: grace window ends in finalNoticeDays days, so expiry
	// fell on that day minus the grace window.
	finalDay := today.AddDate(0, 0, finalNoticeDays)
	start := finalDay.Add(-j.grace)
	end := finalDay.AddDate(0, 0, 1).Add(-j.grace)
	schools, err = j.store.ListExpiringBetween(ctx, start, end)
	if err != nil {
		queryErrs = append(queryErrs, fmt.Errorf("bucket grace_ending: %w", err))
	} else {
		for _, school := range schools {
			j.record(&summary, "grace_ending", school,
				j.notifier.SendFinalNotice(ctx, school, finalNoticeDays))
		}
	}

	return summary, errors.Join(queryErrs...)
}

// record books one send outcome into the summary and metrics.
func (j *RenewalReminders) record(summary *domain.JobSummary, bucket string, school domain.School, err error) {
	if err != nil {
		metrics.RemindersSent.WithLabelValues(bucket, "failed").Inc()
		j.logger.Error("reminder send failed",
			"bucket", bucket,
			"school_id", school.ID,
			"error", err,
		)
		summary.Record(fmt.Errorf("%s, school %s: %w", bucket, school.ID, err))
		return
	}
	metrics.RemindersSent.WithLabelValues(bucket, "sent").Inc()
	summary.Record(nil)
}

// startOfDay truncates t to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
