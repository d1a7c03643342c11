// Package domain contains core business types and interfaces.
//
// This file defines the cron run audit record: one row per scheduled job
// execution, inserted at job start and updated at job end. It exists purely
// for observability; business logic never reads it back.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CronRunStatus represents the state of a recorded job execution.
type CronRunStatus string

const (
	CronRunStatusStarted   CronRunStatus = "started"
	CronRunStatusCompleted CronRunStatus = "completed"
	CronRunStatusFailed    CronRunStatus = "failed"
)

// CronRun is the audit row for one scheduled job execution.
type CronRun struct {
	ID          uuid.UUID
	JobName     string
	Status      CronRunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Details     json.RawMessage // serialized JobSummary or error detail
}

// JobSummary is the details payload written on job completion.
//
// Per-school failures inside a batch are isolated: they land in Errors and
// do not abort the remaining work.
type JobSummary struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Record adds one outcome to the summary.
func (s *JobSummary) Record(err error) {
	s.Processed++
	if err != nil {
		s.Failed++
		s.Errors = append(s.Errors, err.Error())
		return
	}
	s.Succeeded++
}
