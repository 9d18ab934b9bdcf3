package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ImageToVideo-server/config"
	"ImageToVideo-server/models"
)

type fakeRunway struct {
	mu       sync.Mutex
	submits  []runwayRequest
	headers  http.Header
	polls    atomic.Int32
	pending  int32
	final    runwayTask
	submitOK bool
}

func (f *fakeRunway) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/image_to_video", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body runwayRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.submits = append(f.submits, body)
		f.headers = r.Header.Clone()
		f.mu.Unlock()
		if !f.submitOK {
			http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "task-1"})
	})
	mux.HandleFunc("/v1/tasks/task-1", func(w http.ResponseWriter, r *http.Request) {
		n := f.polls.Add(1)
		if n <= f.pending {
			_ = json.NewEncoder(w).Encode(runwayTask{ID: "task-1", Status: "RUNNING"})
			return
		}
		_ = json.NewEncoder(w).Encode(f.final)
	})
	return mux
}

func newTestRunway(t *testing.T, f *fakeRunway) *RunwayGateway {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	g := NewRunwayGateway(config.RunwayConfig{
		Endpoint:     srv.URL + "/",
		Model:        config.DefaultRunwayModel,
		APIVersion:   config.DefaultRunwayVersion,
		PollInterval: time.Millisecond,
	}, "secret-key", nil)
	return g
}

func TestRunwayGateway_SubmitAndPoll(t *testing.T) {
	f := &fakeRunway{
		submitOK: true,
		pending:  2,
		final:    runwayTask{ID: "task-1", Status: "SUCCEEDED", Output: []string{"https://runway.test/out.mp4"}},
	}
	g := newTestRunway(t, f)

	cfg := models.DefaultVideoConfig()
	cfg.AspectRatio = models.Aspect9x16
	cfg.Duration = 15
	video, err := g.Generate(context.Background(), twoImages(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "https://runway.test/out.mp4", video.URL)
	assert.Equal(t, 10.0, video.Duration)
	assert.Equal(t, ProviderRunway, video.Provider)
	assert.Equal(t, int32(3), f.polls.Load())

	require.Len(t, f.submits, 1)
	body := f.submits[0]
	assert.Equal(t, config.DefaultRunwayModel, body.Model)
	assert.Equal(t, "720:1280", body.Ratio)
	assert.Equal(t, 10, body.Duration)
	require.Len(t, body.PromptImage, 2)
	assert.Equal(t, "first", body.PromptImage[0].Position)
	assert.Equal(t, "last", body.PromptImage[1].Position)
	assert.True(t, strings.HasPrefix(body.PromptImage[0].URI, "data:image/png;base64,"))
	assert.True(t, strings.HasPrefix(body.PromptImage[1].URI, "data:image/jpeg;base64,"))

	assert.Equal(t, "Bearer secret-key", f.headers.Get("Authorization"))
	assert.Equal(t, config.DefaultRunwayVersion, f.headers.Get("X-Runway-Version"))
}

func TestRunwayGateway_SingleImageIsFirstFrame(t *testing.T) {
	f := &fakeRunway{
		submitOK: true,
		final:    runwayTask{ID: "task-1", Status: "SUCCEEDED", Output: []string{"u"}},
	}
	g := newTestRunway(t, f)

	_, err := g.Generate(context.Background(), twoImages()[:1], models.DefaultVideoConfig())
	require.NoError(t, err)
	require.Len(t, f.submits[0].PromptImage, 1)
	assert.Equal(t, "first", f.submits[0].PromptImage[0].Position)
}

func TestRunwayGateway_FailedTask(t *testing.T) {
	f := &fakeRunway{
		submitOK: true,
		final:    runwayTask{ID: "task-1", Status: "FAILED", Failure: "content moderation"},
	}
	g := newTestRunway(t, f)

	_, err := g.Generate(context.Background(), twoImages(), models.DefaultVideoConfig())
	assert.ErrorContains(t, err, "content moderation")
}

func TestRunwayGateway_SucceededWithoutOutput(t *testing.T) {
	f := &fakeRunway{submitOK: true, final: runwayTask{ID: "task-1", Status: "SUCCEEDED"}}
	g := newTestRunway(t, f)

	_, err := g.Generate(context.Background(), twoImages(), models.DefaultVideoConfig())
	assert.ErrorContains(t, err, "without output")
}

func TestRunwayGateway_SubmitRejected(t *testing.T) {
	f := &fakeRunway{}
	g := newTestRunway(t, f)

	_, err := g.Generate(context.Background(), twoImages(), models.DefaultVideoConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(0), f.polls.Load())
}

func TestRunwayGateway_PollingStopsOnCancel(t *testing.T) {
	f := &fakeRunway{submitOK: true, pending: 1 << 30}
	g := newTestRunway(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := g.Generate(ctx, twoImages(), models.DefaultVideoConfig())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunwayGateway_StagesImagesInStore(t *testing.T) {
	f := &fakeRunway{
		submitOK: true,
		final:    runwayTask{ID: "task-1", Status: "SUCCEEDED", Output: []string{"u"}},
	}
	g := newTestRunway(t, f)
	store := newMemStore()
	g.Images = store

	_, err := g.Generate(context.Background(), twoImages(), models.DefaultVideoConfig())
	require.NoError(t, err)

	assert.Len(t, store.objects, 2)
	for _, p := range f.submits[0].PromptImage {
		assert.True(t, strings.HasPrefix(p.URI, "https://minio.test/bucket/prompts/"), p.URI)
	}
}

func TestRunwayMappings(t *testing.T) {
	assert.Equal(t, "1280:720", RunwayRatio(models.Aspect16x9))
	assert.Equal(t, "960:960", RunwayRatio(models.Aspect1x1))
	assert.Equal(t, "1584:672", RunwayRatio(models.Aspect21x9))
	assert.Equal(t, "1280:720", RunwayRatio("4:3"))

	assert.Equal(t, 5, RunwayDuration(5))
	assert.Equal(t, 5, RunwayDuration(9))
	assert.Equal(t, 10, RunwayDuration(10))
	assert.Equal(t, 10, RunwayDuration(60))
}

func TestBuildPrompt(t *testing.T) {
	cfg := models.DefaultVideoConfig()
	cfg.AddCameraShake = true
	cfg.NarrationPrompt = "Waves crash on the pier"

	prompt := BuildPrompt(cfg)
	assert.True(t, strings.HasPrefix(prompt, "A cinematic dramatic video."))
	assert.Contains(t, prompt, "parallax depth")
	assert.Contains(t, prompt, "handheld camera shake")
	assert.True(t, strings.HasSuffix(prompt, "Waves crash on the pier"))

	cfg.NarrationPrompt = strings.Repeat("é", 2000)
	assert.Len(t, []rune(BuildPrompt(cfg)), maxPromptLength)
}
