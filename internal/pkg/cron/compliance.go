package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
)

const RecomputeJobName = "compliance_recompute"

type ComplianceJobs struct {
	recompute compliance.RecomputeService
	schedule  string
}

func NewComplianceJobs(recompute compliance.RecomputeService, schedule string) *ComplianceJobs {
	return &ComplianceJobs{recompute: recompute, schedule: schedule}
}

func (j *ComplianceJobs) RegisterJobs(scheduler *Scheduler) error {
	return scheduler.AddJob(RecomputeJobName, j.schedule, j.Recompute)
}

// Recompute rebuilds the snapshot. A run that finds another recompute in
// flight is skipped rather than failed.
func (j *ComplianceJobs) Recompute(ctx context.Context) error {
	slog.Info("Cron: Starting compliance recompute job")

	summary, err := j.recompute.Recompute(ctx)
	if errors.Is(err, compliance.ErrRecomputeInProgress) {
		slog.Warn("Cron: Compliance recompute skipped, previous run still active")
		return nil
	}
	if err != nil {
		return fmt.Errorf("compliance recompute: %w", err)
	}

	slog.Info("Cron: Compliance recompute finished",
		"version", summary.Version,
		"employees", summary.Employees,
		"dropped", summary.DroppedTotal,
		"duration", summary.Duration)
	return nil
}
