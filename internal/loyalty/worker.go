package loyalty

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// MilestoneSweepArgs asks the worker to re-check a user's milestones,
// typically after a balance-increasing event.
type MilestoneSweepArgs struct {
	UserID uuid.UUID `json:"user_id"`
}

func (MilestoneSweepArgs) Kind() string { return "loyalty_milestone_sweep" }

// MilestoneChecker is the contract the worker needs from the loyalty service.
type MilestoneChecker interface {
	CheckMilestones(ctx context.Context, userID uuid.UUID) (*MilestoneCheckResult, error)
}

type MilestoneSweepWorker struct {
	river.WorkerDefaults[MilestoneSweepArgs]
	svc MilestoneChecker
	log *slog.Logger
}

func NewMilestoneSweepWorker(svc MilestoneChecker, log *slog.Logger) *MilestoneSweepWorker {
	if log == nil {
		log = slog.Default()
	}
	return &MilestoneSweepWorker{svc: svc, log: log}
}

// Work runs the sweep. Per-threshold failures are already isolated inside
// CheckMilestones; returning an error here makes River retry the whole
// sweep, which is safe because issuance is idempotent per threshold.
func (w *MilestoneSweepWorker) Work(ctx context.Context, job *river.Job[MilestoneSweepArgs]) error {
	res, err := w.svc.CheckMilestones(ctx, job.Args.UserID)
	if err != nil {
		return err
	}
	if res.TotalRewardsGenerated > 0 {
		w.log.Info("milestone sweep issued rewards", "user_id", job.Args.UserID, "count", res.TotalRewardsGenerated)
	}
	for _, f := range res.Failures {
		w.log.Warn("milestone issuance failed in sweep", "user_id", job.Args.UserID, "milestone_points", f.Points, "reason", f.Reason)
	}
	return nil
}
