package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ImageToVideo-server/config"
	"ImageToVideo-server/models"
)

const (
	runwayTaskSucceeded = "SUCCEEDED"
	runwayTaskFailed    = "FAILED"
	runwayTaskCancelled = "CANCELLED"

	maxPromptLength = 1000
	maxErrorBody    = 2000
)

var runwayRatios = map[models.AspectRatio]string{
	models.Aspect16x9: "1280:720",
	models.Aspect9x16: "720:1280",
	models.Aspect1x1:  "960:960",
	models.Aspect21x9: "1584:672",
}

type runwayPromptImage struct {
	URI      string `json:"uri"`
	Position string `json:"position"`
}

type runwayRequest struct {
	Model       string              `json:"model"`
	PromptImage []runwayPromptImage `json:"promptImage"`
	PromptText  string              `json:"promptText,omitempty"`
	Ratio       string              `json:"ratio"`
	Duration    int                 `json:"duration"`
}

type runwayTask struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Output  []string `json:"output"`
	Failure string   `json:"failure"`
}

// RunwayGateway calls the Runway image-to-video API: one submit followed by
// polling the task until it settles.
type RunwayGateway struct {
	APIKey       string
	Endpoint     string
	Model        string
	APIVersion   string
	PollInterval time.Duration
	HTTPClient   *http.Client
	// Images, when set, hosts the reference images and Runway receives
	// presigned URLs instead of inline data URIs.
	Images ImageStore
	Logger *slog.Logger
}

func NewRunwayGateway(cfg config.RunwayConfig, apiKey string, images ImageStore) *RunwayGateway {
	return &RunwayGateway{
		APIKey:       apiKey,
		Endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		Model:        cfg.Model,
		APIVersion:   cfg.APIVersion,
		PollInterval: cfg.PollInterval,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		Images:       images,
		Logger:       slog.Default(),
	}
}

func (r *RunwayGateway) Generate(ctx context.Context, images []models.ImageAsset, cfg models.VideoConfig) (*models.GeneratedVideo, error) {
	if len(images) == 0 {
		return nil, errors.New("runway: no reference images")
	}
	prompts, err := r.promptImages(ctx, images)
	if err != nil {
		return nil, err
	}
	body := runwayRequest{
		Model:       r.Model,
		PromptImage: prompts,
		PromptText:  BuildPrompt(cfg),
		Ratio:       RunwayRatio(cfg.AspectRatio),
		Duration:    RunwayDuration(cfg.Duration),
	}

	taskID, err := r.submit(ctx, body)
	if err != nil {
		return nil, err
	}
	r.logger().Info("Runway task submitted", "task_id", taskID, "ratio", body.Ratio, "duration", body.Duration)

	task, err := r.poll(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &models.GeneratedVideo{
		URL:      task.Output[0],
		Duration: float64(body.Duration),
		Caption:  fmt.Sprintf("%s %s video, %s", cfg.Style, cfg.Mood, cfg.AspectRatio),
		Provider: ProviderRunway,
	}, nil
}

// promptImages uses the first image as the opening frame and, when there is
// more than one, the last image as the closing frame.
func (r *RunwayGateway) promptImages(ctx context.Context, images []models.ImageAsset) ([]runwayPromptImage, error) {
	picks := []models.ImageAsset{images[0]}
	positions := []string{"first"}
	if len(images) > 1 {
		picks = append(picks, images[len(images)-1])
		positions = append(positions, "last")
	}

	out := make([]runwayPromptImage, 0, len(picks))
	for i, img := range picks {
		uri, err := r.imageURI(ctx, img)
		if err != nil {
			return nil, err
		}
		out = append(out, runwayPromptImage{URI: uri, Position: positions[i]})
	}
	return out, nil
}

func (r *RunwayGateway) imageURI(ctx context.Context, img models.ImageAsset) (string, error) {
	contentType := img.ContentType
	if contentType == "" {
		contentType = ContentTypeFor(img.Name)
	}
	if r.Images == nil {
		return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data), nil
	}
	objectName := fmt.Sprintf("prompts/%s/%s", uuid.NewString(), SafeObjectName(img.Name))
	if err := r.Images.Put(ctx, objectName, bytes.NewReader(img.Data), int64(len(img.Data)), contentType); err != nil {
		return "", fmt.Errorf("runway: stage prompt image: %w", err)
	}
	return r.Images.PresignedURL(ctx, objectName, time.Hour)
}

func (r *RunwayGateway) submit(ctx context.Context, body runwayRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("runway: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint+"/v1/image_to_video", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("runway: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var created runwayTask
	if err := r.do(req, &created); err != nil {
		return "", fmt.Errorf("runway: submit: %w", err)
	}
	if created.ID == "" {
		return "", errors.New("runway: submit response missing 'id'")
	}
	return created.ID, nil
}

func (r *RunwayGateway) poll(ctx context.Context, taskID string) (*runwayTask, error) {
	interval := r.PollInterval
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	taskURL := fmt.Sprintf("%s/v1/tasks/%s", r.Endpoint, taskID)
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("runway: polling canceled: %w", ctx.Err())
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, taskURL, nil)
		if err != nil {
			return nil, fmt.Errorf("runway: create poll request: %w", err)
		}
		var task runwayTask
		if err := r.do(req, &task); err != nil {
			if ctx.Err() != nil {
				continue
			}
			r.logger().Warn("Runway poll failed, retrying", "task_id", taskID, "error", err)
			continue
		}

		switch task.Status {
		case runwayTaskSucceeded:
			if len(task.Output) == 0 || task.Output[0] == "" {
				return nil, fmt.Errorf("runway: task %s succeeded without output", taskID)
			}
			return &task, nil
		case runwayTaskFailed, runwayTaskCancelled:
			return nil, fmt.Errorf("runway: task %s %s: %s", taskID, strings.ToLower(task.Status), task.Failure)
		}
	}
}

func (r *RunwayGateway) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+r.APIKey)
	req.Header.Set("X-Runway-Version", r.APIVersion)
	req.Header.Set("Accept", "application/json")

	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (r *RunwayGateway) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// RunwayRatio maps an aspect ratio onto the output resolution Runway expects.
func RunwayRatio(a models.AspectRatio) string {
	if ratio, ok := runwayRatios[a]; ok {
		return ratio
	}
	return runwayRatios[models.Aspect16x9]
}

// RunwayDuration picks the closest clip length Runway supports: 5 or 10 seconds.
func RunwayDuration(seconds int) int {
	if seconds >= 10 {
		return 10
	}
	return 5
}

// BuildPrompt turns the configuration into the text prompt sent alongside
// the reference images.
func BuildPrompt(cfg models.VideoConfig) string {
	parts := []string{
		fmt.Sprintf("A %s %s video.", cfg.Style, cfg.Mood),
		styleNote(cfg.Style),
	}
	if cfg.AddDepth {
		parts = append(parts, "Subtle parallax depth between foreground and background.")
	}
	if cfg.AddCameraShake {
		parts = append(parts, "Light handheld camera shake.")
	} else {
		parts = append(parts, "Stable camera motion.")
	}
	if cfg.NarrationPrompt != "" {
		parts = append(parts, cfg.NarrationPrompt)
	}

	prompt := strings.Join(parts, " ")
	if runes := []rune(prompt); len(runes) > maxPromptLength {
		prompt = strings.TrimSpace(string(runes[:maxPromptLength]))
	}
	return prompt
}

func styleNote(s models.Style) string {
	switch s {
	case models.StyleAnimated:
		return "Hand-drawn animation with smooth in-betweens."
	case models.StyleMinimalistic:
		return "Clean compositions, restrained motion, negative space."
	case models.StyleSurreal:
		return "Dreamlike transitions and impossible geometry."
	case models.StyleDocumentary:
		return "Natural light and observational framing."
	default:
		return "Anamorphic lenses, shallow depth of field, filmic grade."
	}
}
