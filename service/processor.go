package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/hibiken/asynq"

	"ImageToVideo-server/models"
	"ImageToVideo-server/pipeline"
)

// Processor consumes queued runs: it loads the stored images, drives the
// orchestrator and persists every timeline snapshot to the run record.
type Processor struct {
	Runs         models.RunRepository
	Images       ImageStore
	Orchestrator *pipeline.Orchestrator
	Logger       *slog.Logger
}

func NewProcessor(runs models.RunRepository, images ImageStore, orch *pipeline.Orchestrator) *Processor {
	return &Processor{
		Runs:         runs,
		Images:       images,
		Orchestrator: orch,
		Logger:       slog.Default(),
	}
}

// Start runs the asynq worker server in the background. The caller owns the
// returned server and shuts it down.
func (p *Processor) Start(opt asynq.RedisClientOpt, concurrency int) (*asynq.Server, error) {
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default": 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeGenerateRun, p.HandleGenerateRun)

	p.logger().Info("Starting run processor", "concurrency", concurrency)
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("start processor: %w", err)
	}
	return srv, nil
}

func (p *Processor) HandleGenerateRun(ctx context.Context, t *asynq.Task) error {
	var payload RunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	return p.Process(ctx, payload.RunID)
}

// Process executes one stored run. Errors returned from here are retried by
// the queue; a failed generation is a business outcome and is not.
func (p *Processor) Process(ctx context.Context, runID string) error {
	logger := p.logger().With("run_id", runID)

	run, err := p.Runs.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, models.ErrRunNotFound) {
			return fmt.Errorf("run %s: %v: %w", runID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("load run %s: %w", runID, err)
	}
	if run.IsTerminal() {
		logger.Info("Run already settled, skipping", "status", run.Status)
		return nil
	}

	images, err := p.loadImages(ctx, run.AssetKeys)
	if err != nil {
		logger.Error("Loading reference images failed", "error", err)
		return err
	}

	if err := p.Runs.UpdateStatus(ctx, run.ID, models.RunStatusProcessing, ""); err != nil {
		logger.Warn("UpdateStatus processing failed", "error", err)
	}

	state := pipeline.NewRunState(p.Orchestrator.Catalog)
	state.ResumeFrom(run.State.Version)
	persist := newStatePersister(ctx, p.Runs, run.ID, logger)
	state.Subscribe(persist.Offer)

	_, runErr := p.Orchestrator.Run(ctx, state, pipeline.Request{Images: images, Config: run.Config})
	persist.Close()

	status, errMsg := models.RunStatusFinished, ""
	if runErr != nil {
		status = models.RunStatusFailed
		errMsg = userMessage(runErr)
	}
	if err := p.Runs.UpdateStatus(ctx, run.ID, status, errMsg); err != nil {
		logger.Error("UpdateStatus failed", "status", status, "error", err)
		return err
	}
	logger.Info("Run settled", "status", status)
	return nil
}

func (p *Processor) loadImages(ctx context.Context, keys models.AssetKeys) ([]models.ImageAsset, error) {
	images := make([]models.ImageAsset, 0, len(keys))
	for _, key := range keys {
		data, err := p.Images.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		name := path.Base(key)
		images = append(images, models.ImageAsset{
			Name:        name,
			ContentType: ContentTypeFor(name),
			Data:        data,
		})
	}
	return images, nil
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// userMessage keeps provider internals out of the stored run error.
func userMessage(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrGenerationFailed):
		return pipeline.MessageGenerationFailed
	case errors.Is(err, pipeline.ErrNoImages), errors.Is(err, models.ErrInvalidConfig):
		return err.Error()
	default:
		return pipeline.MessageGenerationFailed
	}
}

// statePersister writes snapshots from a single goroutine so the observer
// never blocks the run on the database. Only the newest pending snapshot is
// kept; Close flushes it.
type statePersister struct {
	ctx    context.Context
	runs   models.RunRepository
	runID  string
	logger *slog.Logger

	mu      sync.Mutex
	pending *models.RunSnapshot
	wake    chan struct{}
	done    chan struct{}
	closed  bool
}

func newStatePersister(ctx context.Context, runs models.RunRepository, runID string, logger *slog.Logger) *statePersister {
	sp := &statePersister{
		ctx:    context.WithoutCancel(ctx),
		runs:   runs,
		runID:  runID,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go sp.loop()
	return sp
}

func (sp *statePersister) Offer(snap models.RunSnapshot) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.closed {
		return
	}
	sp.pending = &snap
	select {
	case sp.wake <- struct{}{}:
	default:
	}
}

func (sp *statePersister) Close() {
	sp.mu.Lock()
	if sp.closed {
		sp.mu.Unlock()
		return
	}
	sp.closed = true
	close(sp.wake)
	sp.mu.Unlock()
	<-sp.done
}

func (sp *statePersister) loop() {
	defer close(sp.done)
	for range sp.wake {
		sp.flush()
	}
	sp.flush()
}

func (sp *statePersister) flush() {
	sp.mu.Lock()
	snap := sp.pending
	sp.pending = nil
	sp.mu.Unlock()
	if snap == nil {
		return
	}
	if err := sp.runs.SaveState(sp.ctx, sp.runID, *snap); err != nil {
		sp.logger.Warn("SaveState failed", "version", snap.Version, "error", err)
	}
}
