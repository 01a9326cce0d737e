// Package jobs runs the platform's background maintenance over Asynq:
// the session registry sweep and the audit log retention pass.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionSweep removes expired rows from the session registry.
	TaskSessionSweep = "auth:session_sweep"
	// TaskAuditRetention trims audit log entries past the retention window.
	TaskAuditRetention = "audit:retention"
)

// AuditRetentionPayload carries the retention window in hours.
type AuditRetentionPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewSessionSweepTask constructs the session sweep task.
func NewSessionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSessionSweep, nil)
}

// NewAuditRetentionTask constructs the audit retention task.
func NewAuditRetentionTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditRetentionPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}
