package jobs

import (
	"context"
	"log/slog"

	"github.com/darasahq/darasa/internal/domain"
)

// ResetSMSQuotas zeroes every paid school's monthly SMS counter. Runs on
// the first of the month at midnight in the configured timezone.
type ResetSMSQuotas struct {
	store  domain.SchoolStore
	logger *slog.Logger
}

// NewResetSMSQuotas creates the monthly SMS quota reset job.
func NewResetSMSQuotas(store domain.SchoolStore, logger *slog.Logger) *ResetSMSQuotas {
	return &ResetSMSQuotas{store: store, logger: logger}
}

// Name returns the job name.
func (j *ResetSMSQuotas) Name() string {
	return JobResetSMSQuotas
}

// Run executes the reset as one bulk statement.
func (j *ResetSMSQuotas) Run(ctx context.Context) (domain.JobSummary, error) {
	n, err := j.store.ResetAllSMSUsed(ctx)
	if err != nil {
		return domain.JobSummary{}, err
	}

	j.logger.Info("monthly sms quotas reset", "schools", n)
	return domain.JobSummary{Processed: int(n), Succeeded: int(n)}, nil
}
