package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ImageToVideo-server/models"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC) }
}

func TestSimulator_WalksEveryStageInOrder(t *testing.T) {
	c := DefaultCatalog()
	state := NewRunState(c)
	state.Now = fixedClock()

	var seen []string
	state.Subscribe(func(snap models.RunSnapshot) {
		for _, s := range snap.Steps {
			if s.Status == models.StageStatusActive {
				seen = append(seen, s.ID)
			}
		}
	})

	sim := &Simulator{Catalog: c}
	sim.Run(context.Background(), state, models.DefaultVideoConfig())

	snap := state.Snapshot()
	assert.Equal(t, c.IDs(), seen)
	require.Len(t, snap.Milestones, c.Len())
	for i, id := range c.IDs() {
		assert.Equal(t, id, snap.Milestones[i].StageID)
		assert.Equal(t, "10:30:00 · Entered "+id+" stage", snap.ActivityLog[i])
	}

	// walk ends on the last stage active, everything before it done
	for _, s := range snap.Steps[:c.Len()-1] {
		assert.Equal(t, models.StageStatusDone, s.Status)
	}
	assert.Equal(t, models.StageStatusActive, snap.Steps[c.Len()-1].Status)
}

func TestSimulator_PausesBetweenStagesOnly(t *testing.T) {
	c := MustCatalog([]models.StageDefinition{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	state := NewRunState(c)
	sim := &Simulator{Catalog: c, Interval: 20 * time.Millisecond}

	start := time.Now()
	sim.Run(context.Background(), state, models.DefaultVideoConfig())
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestSimulator_CancelledContextStillCommitsEveryStage(t *testing.T) {
	c := DefaultCatalog()
	state := NewRunState(c)
	sim := &Simulator{Catalog: c, Interval: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		sim.Run(ctx, state, models.DefaultVideoConfig())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("simulator kept sleeping after cancellation")
	}
	assert.Len(t, state.Snapshot().Milestones, c.Len())
}

func TestSimulator_CustomMilestone(t *testing.T) {
	c := MustCatalog([]models.StageDefinition{{ID: "only"}})
	state := NewRunState(c)
	sim := &Simulator{
		Catalog: c,
		Milestone: func(id string, cfg models.VideoConfig) models.Milestone {
			return models.Milestone{StageID: id, Feedback: strings.ToUpper(id)}
		},
	}
	sim.Run(context.Background(), state, models.DefaultVideoConfig())

	assert.Equal(t, "ONLY", state.Snapshot().Milestones[0].Feedback)
}
