package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ImageToVideo-server/metrics"
	"ImageToVideo-server/models"
)

// Gateway produces a video from reference images. Implementations make a
// single attempt; fallback between providers is the gateway's concern.
type Gateway interface {
	Generate(ctx context.Context, images []models.ImageAsset, cfg models.VideoConfig) (*models.GeneratedVideo, error)
}

// Request is one submitted generation request.
type Request struct {
	Images []models.ImageAsset
	Config models.VideoConfig
}

// Orchestrator runs the gateway call and the timeline simulation concurrently
// and joins them before reporting the run complete.
type Orchestrator struct {
	Gateway   Gateway
	Catalog   *Catalog
	Interval  time.Duration
	Milestone MilestoneFunc
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

func NewOrchestrator(gw Gateway, catalog *Catalog, interval time.Duration) *Orchestrator {
	return &Orchestrator{
		Gateway:  gw,
		Catalog:  catalog,
		Interval: interval,
		Logger:   slog.Default(),
	}
}

// Run executes one generation run against state.
//
// Invalid requests and a state that is already running are rejected before any
// mutation. Otherwise the simulator starts in the background, the gateway is
// called in the foreground, its outcome is written to state, and Run waits for
// the simulator before clearing IsRunning. The returned error wraps
// ErrGenerationFailed when the gateway failed; state.Error then holds the
// user-facing message and the cause is only logged.
func (o *Orchestrator) Run(ctx context.Context, state *RunState, req Request) (*models.GeneratedVideo, error) {
	if len(req.Images) == 0 {
		return nil, ErrNoImages
	}
	req.Config = req.Config.Normalize()
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	if err := state.begin(len(req.Images)); err != nil {
		return nil, err
	}

	logger := o.logger()
	started := time.Now()
	o.Metrics.RecordRunStarted()

	sim := &Simulator{
		Catalog:   o.Catalog,
		Interval:  o.Interval,
		Milestone: o.Milestone,
		Metrics:   o.Metrics,
	}
	var timeline errgroup.Group
	timeline.Go(func() error {
		sim.Run(ctx, state, req.Config)
		return nil
	})

	video, err := o.generate(ctx, req)
	if err != nil {
		logger.Error("Generation failed", "assets", len(req.Images), "error", err)
		state.fail(MessageGenerationFailed)
	} else {
		state.succeed(video)
	}

	// the simulator must not mutate state after IsRunning flips to false
	_ = timeline.Wait()
	state.finish()

	if err != nil {
		o.Metrics.RecordRunFinished(metrics.OutcomeFailure, time.Since(started))
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	o.Metrics.RecordRunFinished(metrics.OutcomeSuccess, time.Since(started))
	logger.Info("Generation finished", "provider", video.Provider, "duration", video.Duration, "elapsed", time.Since(started).Round(time.Millisecond))
	return video, nil
}

// generate calls the gateway, converting panics and empty results into errors.
func (o *Orchestrator) generate(ctx context.Context, req Request) (video *models.GeneratedVideo, err error) {
	defer func() {
		if r := recover(); r != nil {
			video = nil
			err = fmt.Errorf("gateway panic: %v", r)
		}
	}()
	if o.Gateway == nil {
		return nil, errors.New("no gateway configured")
	}
	video, err = o.Gateway.Generate(ctx, req.Images, req.Config)
	if err == nil && video == nil {
		err = errors.New("gateway returned no video")
	}
	return video, err
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
