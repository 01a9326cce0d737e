package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/crucible-ti/crucible/internal/audit"
)

// AuditRetentionJob trims audit entries older than the retention
// window.
type AuditRetentionJob struct {
	auditLog *audit.Logger
	logger   *slog.Logger
}

// NewAuditRetentionJob constructs the job.
func NewAuditRetentionJob(auditLog *audit.Logger, logger *slog.Logger) *AuditRetentionJob {
	return &AuditRetentionJob{auditLog: auditLog, logger: logger}
}

// Handle processes TaskAuditRetention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionHours <= 0 {
		return asynq.SkipRetry
	}
	cutoff := time.Now().UTC().Add(-time.Duration(payload.RetentionHours) * time.Hour)
	removed, err := j.auditLog.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if j.logger != nil {
		j.logger.Info("audit retention complete",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff))
	}
	return nil
}
