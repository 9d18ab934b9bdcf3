package pipeline

import (
	"context"
	"log/slog"
	"time"

	"ImageToVideo-server/metrics"
	"ImageToVideo-server/models"
)

// DefaultStageInterval is the pause between two simulated stage transitions.
const DefaultStageInterval = 1400 * time.Millisecond

// Simulator walks the stage catalog on a fixed clock, independent of the real
// provider call. Its progress is a UX affordance, not a measurement.
type Simulator struct {
	Catalog   *Catalog
	Interval  time.Duration
	Milestone MilestoneFunc
	Metrics   *metrics.Collector
}

// Run enters every stage in catalog order, appending one milestone and one
// activity-log line per stage and pausing Interval between stages. It never
// fails. When ctx is cancelled it stops pausing but still commits the
// remaining stages, so a run always records one milestone per stage.
func (sim *Simulator) Run(ctx context.Context, state *RunState, cfg models.VideoConfig) {
	milestone := sim.Milestone
	if milestone == nil {
		milestone = MilestoneFor
	}
	ids := sim.Catalog.IDs()
	for i, id := range ids {
		if err := state.enterStage(id, milestone(id, cfg)); err != nil {
			// catalog ids always resolve; this only fires on a mismatched state
			slog.Error("Simulator: stage transition failed", "stage", id, "error", err)
			continue
		}
		sim.Metrics.RecordStage(id)
		if i < len(ids)-1 {
			sim.pause(ctx)
		}
	}
}

func (sim *Simulator) pause(ctx context.Context) {
	if sim.Interval <= 0 || ctx.Err() != nil {
		return
	}
	timer := time.NewTimer(sim.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
