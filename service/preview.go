package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ImageToVideo-server/models"
)

const sampleBase = "https://storage.googleapis.com/gtv-videos-bucket/sample/"

var previewClips = map[models.Style]string{
	models.StyleCinematic:    "TearsOfSteel",
	models.StyleAnimated:     "BigBuckBunny",
	models.StyleMinimalistic: "ForBiggerBlazes",
	models.StyleSurreal:      "ElephantsDream",
	models.StyleDocumentary:  "SubaruOutbackOnStreetAndDirt",
}

// PreviewGateway is the local fallback provider. It never touches the network
// and returns the same video for the same images and configuration.
type PreviewGateway struct {
	// Latency simulates render time; zero returns immediately.
	Latency time.Duration
}

func (p *PreviewGateway) Generate(ctx context.Context, images []models.ImageAsset, cfg models.VideoConfig) (*models.GeneratedVideo, error) {
	if p.Latency > 0 {
		timer := time.NewTimer(p.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	clip, ok := previewClips[cfg.Style]
	if !ok {
		clip = previewClips[models.StyleCinematic]
	}
	return &models.GeneratedVideo{
		URL:       sampleBase + clip + ".mp4",
		Thumbnail: sampleBase + "images/" + clip + ".jpg",
		Duration:  float64(models.ClampDuration(cfg.Duration)),
		Caption:   previewCaption(cfg, len(images)),
		Provider:  ProviderPreview,
	}, nil
}

func previewCaption(cfg models.VideoConfig, assetCount int) string {
	style := string(cfg.Style)
	if style != "" {
		style = strings.ToUpper(style[:1]) + style[1:]
	}
	caption := fmt.Sprintf("%s %s preview from %d reference image(s), %s soundtrack", style, cfg.Mood, assetCount, cfg.Soundtrack)
	if cfg.NarrationPrompt != "" {
		caption += ": " + cfg.NarrationPrompt
	}
	return caption
}
