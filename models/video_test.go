package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVideoConfig_FillsDefaults(t *testing.T) {
	cfg, err := ParseVideoConfig([]byte(`{"style":"surreal"}`))
	require.NoError(t, err)

	want := DefaultVideoConfig()
	want.Style = StyleSurreal
	assert.Equal(t, want, cfg)
}

func TestParseVideoConfig_ClampsDuration(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"below range", `{"duration":1}`, MinDurationSeconds},
		{"negative", `{"duration":-20}`, MinDurationSeconds},
		{"above range", `{"duration":600}`, MaxDurationSeconds},
		{"in range", `{"duration":30}`, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseVideoConfig([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Duration)
		})
	}
}

func TestParseVideoConfig_RejectsUnknownEnums(t *testing.T) {
	tests := []string{
		`{"style":"noir"}`,
		`{"mood":"angry"}`,
		`{"aspectRatio":"4:3"}`,
		`{"soundtrack":"jazz"}`,
		`{"style":""}`,
	}
	for _, raw := range tests {
		_, err := ParseVideoConfig([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidConfig, raw)
	}
}

func TestValidate_ReportsDurationOutOfRange(t *testing.T) {
	cfg := DefaultVideoConfig()
	cfg.Duration = 90

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "duration 90 out of range [5, 60]")
	assert.NotContains(t, err.Error(), "unknown")

	require.NoError(t, cfg.Normalize().Validate())
}

func TestParseVideoConfig_RejectsMalformedJSON(t *testing.T) {
	_, err := ParseVideoConfig([]byte(`{"duration":"long"`))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, ErrMalformedConfig)

	_, err = ParseVideoConfig([]byte(`{"style":"noir"}`))
	assert.NotErrorIs(t, err, ErrMalformedConfig)
}

func TestParseVideoConfig_FullPayload(t *testing.T) {
	raw := `{"style":"documentary","mood":"mysterious","duration":42,"aspectRatio":"21:9",
		"addDepth":false,"addCameraShake":true,"soundtrack":"narrative","narrationPrompt":"  a quiet harbour at dawn "}`
	cfg, err := ParseVideoConfig([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, VideoConfig{
		Style:           StyleDocumentary,
		Mood:            MoodMysterious,
		Duration:        42,
		AspectRatio:     Aspect21x9,
		AddDepth:        false,
		AddCameraShake:  true,
		Soundtrack:      SoundtrackNarrative,
		NarrationPrompt: "a quiet harbour at dawn",
	}, cfg)
}

func TestRunSnapshot_ScanNil(t *testing.T) {
	var snap RunSnapshot
	assert.NoError(t, snap.Scan(nil))
	assert.Error(t, snap.Scan(42))
}
