package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/crucible-ti/crucible/internal/auth"
)

// SessionSweepJob deletes expired rows from the session registry. The
// Redis copies expire on their own; the registry needs an explicit
// sweep.
type SessionSweepJob struct {
	service *auth.Service
	logger  *slog.Logger
}

// NewSessionSweepJob constructs the job.
func NewSessionSweepJob(service *auth.Service, logger *slog.Logger) *SessionSweepJob {
	return &SessionSweepJob{service: service, logger: logger}
}

// Handle processes TaskSessionSweep tasks.
func (j *SessionSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	removed, err := j.service.SweepExpiredSessions(ctx)
	if err != nil {
		return err
	}
	if j.logger != nil {
		j.logger.Info("session sweep complete", slog.Int64("removed", removed))
	}
	return nil
}
