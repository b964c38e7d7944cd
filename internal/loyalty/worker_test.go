package loyalty

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

type stubChecker struct {
	result *MilestoneCheckResult
	err    error
	calls  int
}

func (s *stubChecker) CheckMilestones(_ context.Context, _ uuid.UUID) (*MilestoneCheckResult, error) {
	s.calls++
	return s.result, s.err
}

func sweepJob(userID uuid.UUID) *river.Job[MilestoneSweepArgs] {
	return &river.Job[MilestoneSweepArgs]{
		JobRow: &rivertype.JobRow{},
		Args:   MilestoneSweepArgs{UserID: userID},
	}
}

func TestMilestoneSweepWorker(t *testing.T) {
	checker := &stubChecker{result: &MilestoneCheckResult{
		NewMilestones:         []AwardedMilestone{{Points: 500, VoucherCode: "OL-A-B"}},
		TotalRewardsGenerated: 1,
	}}
	w := NewMilestoneSweepWorker(checker, nil)

	if err := w.Work(context.Background(), sweepJob(uuid.New())); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if checker.calls != 1 {
		t.Errorf("sweep calls: got %d, want 1", checker.calls)
	}
}

// A sweep-level error propagates so River retries the job.
func TestMilestoneSweepWorker_PropagatesError(t *testing.T) {
	want := errors.New("database unavailable")
	w := NewMilestoneSweepWorker(&stubChecker{err: want}, nil)

	if err := w.Work(context.Background(), sweepJob(uuid.New())); !errors.Is(err, want) {
		t.Errorf("Work: got %v, want %v", err, want)
	}
}
