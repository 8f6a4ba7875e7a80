package jobs

import (
	"context"
	"log/slog"

	portssvc "github.com/jakeross838/Construction-Management-Software-sub001/internal/core/ports/services"
	"github.com/robfig/cron/v3"
)

// systemUserID is recorded as the actor on scheduled repairs.
const systemUserID = "system"

// ReconciliationJob runs the reconciliation engine over every active job on a
// cron schedule, in write mode.
type ReconciliationJob struct {
	reconService portssvc.ReconciliationSvcFacade
	logger       *slog.Logger
	cron         *cron.Cron
}

// NewReconciliationJob creates the scheduled reconciliation runner.
func NewReconciliationJob(reconService portssvc.ReconciliationSvcFacade, logger *slog.Logger) *ReconciliationJob {
	return &ReconciliationJob{
		reconService: reconService,
		logger:       logger,
		cron:         cron.New(),
	}
}

// Start registers the schedule and starts the cron loop. An empty schedule
// disables the job.
func (j *ReconciliationJob) Start(schedule string) error {
	if schedule == "" {
		j.logger.Info("Scheduled reconciliation disabled")
		return nil
	}
	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("Scheduled reconciliation started", slog.String("schedule", schedule))
	return nil
}

// Stop halts the cron loop, waiting for a running job to finish.
func (j *ReconciliationJob) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

func (j *ReconciliationJob) run() {
	ctx := context.Background()
	reports, err := j.reconService.ReconcileAll(ctx, true, systemUserID)
	if err != nil {
		j.logger.Error("Scheduled reconciliation failed", slog.String("error", err.Error()))
		return
	}
	corrections := 0
	drift := 0
	for _, r := range reports {
		corrections += r.CorrectionsApplied
		drift += len(r.Discrepancies)
	}
	j.logger.Info("Scheduled reconciliation finished",
		slog.Int("jobs", len(reports)),
		slog.Int("discrepancies", drift),
		slog.Int("corrections", corrections))
}
