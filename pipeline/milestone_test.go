package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"ImageToVideo-server/models"
)

func TestMilestoneFor_EveryStage(t *testing.T) {
	cfg := models.DefaultVideoConfig()
	for _, id := range DefaultCatalog().IDs() {
		m := MilestoneFor(id, cfg)
		assert.Equal(t, id, m.StageID)
		assert.NotEmpty(t, m.Feedback, id)
		assert.NotEmpty(t, m.Recommendations, id)
		assert.NotContains(t, m.Feedback, "%!", id)
	}
}

func TestMilestoneFor_UsesConfiguration(t *testing.T) {
	cfg := models.DefaultVideoConfig()
	cfg.AddCameraShake = true
	assert.Contains(t, MilestoneFor("motion", cfg).Feedback, "camera shake")

	cfg.NarrationPrompt = "A story about the sea"
	m := MilestoneFor("audio", cfg)
	assert.True(t, strings.HasPrefix(m.Recommendations[0], "Narration detected"))

	cfg.Duration = 30
	assert.Contains(t, MilestoneFor("storyboard", cfg).Feedback, "6 beats over 30s")
}

func TestMilestoneFor_UnknownStage(t *testing.T) {
	m := MilestoneFor("extra", models.DefaultVideoConfig())
	assert.Equal(t, "extra", m.StageID)
	assert.NotNil(t, m.Recommendations)
}

func TestSuggestions(t *testing.T) {
	cfg := models.DefaultVideoConfig()
	base := Suggestions(cfg)
	assert.Len(t, base, 5)

	cfg.AddCameraShake = true
	cfg.Soundtrack = models.SoundtrackNarrative
	assert.Len(t, Suggestions(cfg), 7)
}
