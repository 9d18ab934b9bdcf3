package pipeline

import (
	"fmt"
	"log/slog"

	"ImageToVideo-server/models"
)

// Timeline is the stage-status state machine of a single run. It is not safe
// for concurrent use; RunState serialises access to it.
type Timeline struct {
	catalog *Catalog
	steps   []models.TimelineStep
}

// NewTimeline returns a timeline in its reset state.
func NewTimeline(catalog *Catalog) *Timeline {
	t := &Timeline{
		catalog: catalog,
		steps:   make([]models.TimelineStep, catalog.Len()),
	}
	for i, def := range catalog.stages {
		t.steps[i].StageDefinition = def
	}
	t.Reset()
	return t
}

// Reset makes the first stage active and every other stage pending.
func (t *Timeline) Reset() {
	for i := range t.steps {
		if i == 0 {
			t.steps[i].Status = models.StageStatusActive
		} else {
			t.steps[i].Status = models.StageStatusPending
		}
	}
}

// AdvanceTo marks every stage before id done, id active and every stage after
// it pending. An unknown id leaves the timeline untouched.
func (t *Timeline) AdvanceTo(id string) error {
	target, ok := t.catalog.Index(id)
	if !ok {
		slog.Warn("Timeline: advance to unknown stage ignored", "stage", id)
		return fmt.Errorf("advance to %q: %w", id, ErrUnknownStage)
	}
	for i := range t.steps {
		switch {
		case i < target:
			t.steps[i].Status = models.StageStatusDone
		case i == target:
			t.steps[i].Status = models.StageStatusActive
		default:
			t.steps[i].Status = models.StageStatusPending
		}
	}
	return nil
}

// MarkDone sets a single stage to done without touching the others.
func (t *Timeline) MarkDone(id string) error {
	return t.set(id, models.StageStatusDone)
}

// MarkError sets a single stage to error without touching the others.
func (t *Timeline) MarkError(id string) error {
	return t.set(id, models.StageStatusError)
}

// MarkAllDone forces every stage to done.
func (t *Timeline) MarkAllDone() {
	for i := range t.steps {
		t.steps[i].Status = models.StageStatusDone
	}
}

func (t *Timeline) set(id string, status models.StageStatus) error {
	i, ok := t.catalog.Index(id)
	if !ok {
		slog.Warn("Timeline: status change for unknown stage ignored", "stage", id, "status", status)
		return fmt.Errorf("mark %q %s: %w", id, status, ErrUnknownStage)
	}
	t.steps[i].Status = status
	return nil
}

// Steps returns a copy of the current steps.
func (t *Timeline) Steps() []models.TimelineStep {
	return append([]models.TimelineStep(nil), t.steps...)
}

// Status returns the status of one stage.
func (t *Timeline) Status(id string) (models.StageStatus, bool) {
	i, ok := t.catalog.Index(id)
	if !ok {
		return "", false
	}
	return t.steps[i].Status, true
}
