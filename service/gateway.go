package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ImageToVideo-server/config"
	"ImageToVideo-server/metrics"
	"ImageToVideo-server/models"
	"ImageToVideo-server/pipeline"
)

const (
	ProviderRunway  = "runway"
	ProviderPreview = "preview"
)

// FallbackGateway selects the real provider when a credential is present and
// falls back to the local preview gateway when it is absent or fails. The
// credential is looked up on every call.
type FallbackGateway struct {
	// Credential returns the provider API key, or "" when none is configured.
	Credential func() string
	// NewReal builds the real gateway for a key.
	NewReal  func(apiKey string) pipeline.Gateway
	Fallback pipeline.Gateway
	// Timeout bounds the real call; on expiry the fallback serves the run.
	Timeout time.Duration
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// NewGateway wires the Runway gateway behind the preview fallback. images may
// be nil, in which case prompt images are sent inline.
func NewGateway(cfg *config.Config, images ImageStore, m *metrics.Collector) *FallbackGateway {
	return &FallbackGateway{
		Credential: cfg.RunwayKey,
		NewReal: func(apiKey string) pipeline.Gateway {
			return NewRunwayGateway(cfg.Runway, apiKey, images)
		},
		Fallback: &PreviewGateway{Latency: cfg.Pipeline.MockLatency},
		Timeout:  cfg.Runway.Timeout,
		Metrics:  m,
	}
}

func (g *FallbackGateway) Generate(ctx context.Context, images []models.ImageAsset, cfg models.VideoConfig) (*models.GeneratedVideo, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}

	key := ""
	if g.Credential != nil {
		key = g.Credential()
	}
	if key != "" && g.NewReal != nil {
		video, err := g.callReal(ctx, key, images, cfg)
		if err == nil {
			return video, nil
		}
		// caller cancellation is not a provider failure
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("Runway generation failed, falling back to local preview", "error", err)
		g.Metrics.RecordFallback("provider_error")
	} else {
		logger.Info("No provider credential configured, using local preview")
		g.Metrics.RecordFallback("no_credential")
	}

	if g.Fallback == nil {
		return nil, errors.New("no fallback gateway configured")
	}
	start := time.Now()
	video, err := g.Fallback.Generate(ctx, images, cfg)
	g.Metrics.RecordGateway(ProviderPreview, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("fallback generation: %w", err)
	}
	if video != nil && video.Provider == "" {
		video.Provider = ProviderPreview
	}
	return video, nil
}

func (g *FallbackGateway) callReal(ctx context.Context, key string, images []models.ImageAsset, cfg models.VideoConfig) (*models.GeneratedVideo, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}
	start := time.Now()
	video, err := g.NewReal(key).Generate(ctx, images, cfg)
	g.Metrics.RecordGateway(ProviderRunway, time.Since(start))
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, errors.New("runway returned no video")
	}
	if video.Provider == "" {
		video.Provider = ProviderRunway
	}
	return video, nil
}
