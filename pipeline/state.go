package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ImageToVideo-server/models"
)

const (
	MessageNoImages         = "Please attach at least one reference image"
	MessageGenerationFailed = "Video generation failed. Adjust inputs or try again shortly."
)

var (
	ErrNoImages         = errors.New(MessageNoImages)
	ErrRunInProgress    = errors.New("a generation run is already in progress")
	ErrGenerationFailed = errors.New("video generation failed")
)

// Observer receives a snapshot after every mutation of a RunState. Observers
// run with the state locked, in mutation order, and must not call back into
// the state.
type Observer func(models.RunSnapshot)

type settlement int

const (
	unsettled settlement = iota
	settledSuccess
	settledFailure
)

// RunState is the observable state of one run: timeline, milestones, activity
// log, result and error. The caller owns it and hands it to the Orchestrator;
// a RunState can be reused for consecutive runs but holds only one at a time.
type RunState struct {
	mu         sync.Mutex
	catalog    *Catalog
	timeline   *Timeline
	milestones []models.Milestone
	activity   []string
	result     *models.GeneratedVideo
	errMsg     *string
	running    bool
	settled    settlement
	version    uint64
	observers  []Observer

	// Now stamps activity-log lines. Defaults to time.Now.
	Now func() time.Time
}

func NewRunState(catalog *Catalog) *RunState {
	return &RunState{
		catalog:  catalog,
		timeline: NewTimeline(catalog),
		Now:      time.Now,
	}
}

// ResumeFrom continues version numbering after a previously published
// snapshot, so a retried run supersedes what an earlier attempt stored.
func (s *RunState) ResumeFrom(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.version {
		s.version = version
	}
}

// Subscribe registers an observer for subsequent mutations.
func (s *RunState) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *RunState) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *RunState) Snapshot() models.RunSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Logf appends a timestamped line to the activity log.
func (s *RunState) Logf(format string, args ...any) {
	s.mutate(func() {
		s.logLocked(format, args...)
	})
}

// begin starts a run: it fails without touching the state if one is already
// running, otherwise it resets timeline, milestones, result and error.
func (s *RunState) begin(assetCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunInProgress
	}
	s.running = true
	s.settled = unsettled
	s.result = nil
	s.errMsg = nil
	s.milestones = nil
	s.timeline.Reset()
	s.logLocked("Generation queued with %d asset(s)", assetCount)
	s.publishLocked()
	return nil
}

// enterStage commits one simulator tick: advance, milestone and log line are
// applied together so no observer sees a partial tick.
func (s *RunState) enterStage(stageID string, m models.Milestone) error {
	var err error
	s.mutate(func() {
		if err = s.timeline.AdvanceTo(stageID); err != nil {
			return
		}
		s.milestones = append(s.milestones, m)
		s.logLocked("Entered %s stage", stageID)
		s.applySettlementLocked()
	})
	return err
}

func (s *RunState) succeed(video *models.GeneratedVideo) {
	s.mutate(func() {
		v := *video
		s.result = &v
		s.settled = settledSuccess
		s.applySettlementLocked()
		s.logLocked("Video ready")
	})
}

func (s *RunState) fail(message string) {
	s.mutate(func() {
		s.errMsg = &message
		s.settled = settledFailure
		s.applySettlementLocked()
		s.logLocked("Generation failed")
	})
}

func (s *RunState) finish() {
	s.mutate(func() {
		s.applySettlementLocked()
		s.running = false
	})
}

// applySettlementLocked re-forces the terminal statuses once the gateway has
// settled, so simulator ticks that land afterwards cannot move the timeline
// backwards.
func (s *RunState) applySettlementLocked() {
	switch s.settled {
	case settledSuccess:
		s.timeline.MarkAllDone()
	case settledFailure:
		_ = s.timeline.MarkError(s.catalog.Last().ID)
	}
}

func (s *RunState) mutate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.publishLocked()
}

func (s *RunState) logLocked(format string, args ...any) {
	line := fmt.Sprintf("%s · %s", s.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	s.activity = append(s.activity, line)
}

func (s *RunState) publishLocked() {
	s.version++
	if len(s.observers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, o := range s.observers {
		o(snap)
	}
}

func (s *RunState) snapshotLocked() models.RunSnapshot {
	snap := models.RunSnapshot{
		Version:     s.version,
		Steps:       s.timeline.Steps(),
		Milestones:  make([]models.Milestone, len(s.milestones)),
		ActivityLog: make([]string, len(s.activity)),
		IsRunning:   s.running,
	}
	copy(snap.Milestones, s.milestones)
	copy(snap.ActivityLog, s.activity)
	if s.result != nil {
		v := *s.result
		snap.Result = &v
	}
	if s.errMsg != nil {
		msg := *s.errMsg
		snap.Error = &msg
	}
	return snap
}
