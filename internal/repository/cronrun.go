package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/darasahq/darasa/internal/domain"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// CreateCronRun inserts the audit row for a job execution at start time.
func (p *Postgres) CreateCronRun(ctx context.Context, run *domain.CronRun) error {
	const op = "repository.create_cron_run"

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO cron_runs (id, job_name, status, started_at)
		VALUES ($1, $2, $3, $4)`,
		run.ID, run.JobName, run.Status, run.StartedAt,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to record cron run")
	}
	return nil
}

// FinishCronRun closes the audit row with the final status and details.
func (p *Postgres) FinishCronRun(ctx context.Context, id uuid.UUID, status domain.CronRunStatus, details json.RawMessage, at time.Time) error {
	const op = "repository.finish_cron_run"

	payload := pqtype.NullRawMessage{RawMessage: details, Valid: len(details) > 0}
	res, err := p.db.ExecContext(ctx, `
		UPDATE cron_runs SET status = $2, details = $3, completed_at = $4
		WHERE id = $1`,
		id, status, payload, at,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to finish cron run")
	}
	return requireRow(res, op, "cron run", id.String())
}
