// Package jobs contains the bodies of the scheduled jobs fired by the
// cron scheduler.
package jobs

import (
	"context"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/darasahq/darasa/internal/service"
)

// Job name constants used for registration and manual triggering.
const (
	JobCheckExpiredSubscriptions = "check_expired_subscriptions"
	JobSendRenewalReminders      = "send_renewal_reminders"
	JobResetSMSQuotas            = "reset_sms_quotas"
)

// ExpireSubscriptions downgrades schools whose expiry passed more than the
// grace window ago. It runs daily; the work itself lives in the
// subscription service so manual downgrades share the same path.
type ExpireSubscriptions struct {
	subscriptions service.SubscriptionService
}

// NewExpireSubscriptions creates the daily expiry sweep job.
func NewExpireSubscriptions(subscriptions service.SubscriptionService) *ExpireSubscriptions {
	return &ExpireSubscriptions{subscriptions: subscriptions}
}

// Name returns the job name.
func (j *ExpireSubscriptions) Name() string {
	return JobCheckExpiredSubscriptions
}

// Run executes the sweep. Per-school downgrade failures are already
// isolated inside the service; only the listing query can fail the job.
func (j *ExpireSubscriptions) Run(ctx context.Context) (domain.JobSummary, error) {
	return j.subscriptions.CheckExpiredSubscriptions(ctx)
}
