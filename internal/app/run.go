package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/newsdag/internal/ctxlog"
)

// Run executes the main application logic: one run in 'once' mode, the
// scheduling loop until ctx is cancelled in 'serve' mode.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "mode", a.config.Mode)

	if a.config.HealthcheckPort > 0 {
		a.healthCheckServer()
		defer func() { _ = a.closeHealthCheckServer() }()
	}

	if a.config.Mode == ModeServe {
		a.logger.Info("🚀 Serving workflow.", "workflow", a.workflow.ID, "every", a.workflow.Schedule.Every.String())
		if err := a.scheduler.Run(ctx); err != nil {
			return fmt.Errorf("scheduler failed: %w", err)
		}
		a.logger.Info("🏁 Scheduler finished.")
		return nil
	}

	logicalDate := a.config.LogicalDate
	if logicalDate.IsZero() {
		logicalDate = a.scheduler.LatestLogicalDate()
	}
	a.logger.Info("🚀 Starting run.", "workflow", a.workflow.ID, "logical_date", logicalDate.Format(time.DateOnly))

	rec, err := a.scheduler.RunOnce(ctx, logicalDate)
	for _, t := range rec.Tasks {
		a.logger.Info("Task finished.", "task", t.Name, "status", t.Status, "attempts", t.Attempts)
	}
	if err != nil {
		return fmt.Errorf("run %s failed: %w", rec.RunID, err)
	}
	a.logger.Info("🏁 Run finished.", "run_id", rec.RunID, "status", rec.Status, "duration", rec.FinishedAt.Sub(rec.StartedAt).String())
	return nil
}
