package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	MinDurationSeconds = 5
	MaxDurationSeconds = 60
)

var (
	ErrInvalidConfig = errors.New("invalid video configuration")
	// ErrMalformedConfig wraps JSON decoding failures; it also matches ErrInvalidConfig.
	ErrMalformedConfig = fmt.Errorf("%w: malformed JSON", ErrInvalidConfig)
)

type Style string

const (
	StyleCinematic    Style = "cinematic"
	StyleAnimated     Style = "animated"
	StyleMinimalistic Style = "minimalistic"
	StyleSurreal      Style = "surreal"
	StyleDocumentary  Style = "documentary"
)

func (s Style) Valid() bool {
	switch s {
	case StyleCinematic, StyleAnimated, StyleMinimalistic, StyleSurreal, StyleDocumentary:
		return true
	}
	return false
}

type Mood string

const (
	MoodDramatic   Mood = "dramatic"
	MoodUpbeat     Mood = "upbeat"
	MoodRelaxing   Mood = "relaxing"
	MoodMysterious Mood = "mysterious"
)

func (m Mood) Valid() bool {
	switch m {
	case MoodDramatic, MoodUpbeat, MoodRelaxing, MoodMysterious:
		return true
	}
	return false
}

type AspectRatio string

const (
	Aspect16x9 AspectRatio = "16:9"
	Aspect9x16 AspectRatio = "9:16"
	Aspect1x1  AspectRatio = "1:1"
	Aspect21x9 AspectRatio = "21:9"
)

func (a AspectRatio) Valid() bool {
	switch a {
	case Aspect16x9, Aspect9x16, Aspect1x1, Aspect21x9:
		return true
	}
	return false
}

type Soundtrack string

const (
	SoundtrackOrchestral Soundtrack = "orchestral"
	SoundtrackAmbient    Soundtrack = "ambient"
	SoundtrackElectronic Soundtrack = "electronic"
	SoundtrackNarrative  Soundtrack = "narrative"
)

func (s Soundtrack) Valid() bool {
	switch s {
	case SoundtrackOrchestral, SoundtrackAmbient, SoundtrackElectronic, SoundtrackNarrative:
		return true
	}
	return false
}

// VideoConfig is the creative configuration submitted with a generation request.
type VideoConfig struct {
	Style           Style       `json:"style"`
	Mood            Mood        `json:"mood"`
	Duration        int         `json:"duration"`
	AspectRatio     AspectRatio `json:"aspectRatio"`
	AddDepth        bool        `json:"addDepth"`
	AddCameraShake  bool        `json:"addCameraShake"`
	Soundtrack      Soundtrack  `json:"soundtrack"`
	NarrationPrompt string      `json:"narrationPrompt,omitempty"`
}

func DefaultVideoConfig() VideoConfig {
	return VideoConfig{
		Style:       StyleCinematic,
		Mood:        MoodDramatic,
		Duration:    15,
		AspectRatio: Aspect16x9,
		AddDepth:    true,
		Soundtrack:  SoundtrackOrchestral,
	}
}

// ParseVideoConfig decodes a JSON configuration. Omitted fields keep their
// defaults, duration is clamped and unknown enum values are rejected.
func ParseVideoConfig(raw []byte) (VideoConfig, error) {
	cfg := DefaultVideoConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return VideoConfig{}, fmt.Errorf("%w: %w", ErrMalformedConfig, err)
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return VideoConfig{}, err
	}
	return cfg, nil
}

// Normalize clamps Duration into [MinDurationSeconds, MaxDurationSeconds] and
// trims the narration prompt.
func (c VideoConfig) Normalize() VideoConfig {
	c.Duration = ClampDuration(c.Duration)
	c.NarrationPrompt = strings.TrimSpace(c.NarrationPrompt)
	return c
}

func (c VideoConfig) Validate() error {
	var bad []string
	if !c.Style.Valid() {
		bad = append(bad, fmt.Sprintf("style %q", c.Style))
	}
	if !c.Mood.Valid() {
		bad = append(bad, fmt.Sprintf("mood %q", c.Mood))
	}
	if !c.AspectRatio.Valid() {
		bad = append(bad, fmt.Sprintf("aspectRatio %q", c.AspectRatio))
	}
	if !c.Soundtrack.Valid() {
		bad = append(bad, fmt.Sprintf("soundtrack %q", c.Soundtrack))
	}
	var errs []string
	if len(bad) > 0 {
		errs = append(errs, "unknown "+strings.Join(bad, ", "))
	}
	if c.Duration < MinDurationSeconds || c.Duration > MaxDurationSeconds {
		errs = append(errs, fmt.Sprintf("duration %d out of range [%d, %d]", c.Duration, MinDurationSeconds, MaxDurationSeconds))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

func ClampDuration(seconds int) int {
	if seconds < MinDurationSeconds {
		return MinDurationSeconds
	}
	if seconds > MaxDurationSeconds {
		return MaxDurationSeconds
	}
	return seconds
}

func (c VideoConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *VideoConfig) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// GeneratedVideo is the provider result for a successful run.
type GeneratedVideo struct {
	URL       string  `json:"url"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Duration  float64 `json:"duration"`
	Caption   string  `json:"caption,omitempty"`
	// Provider names the gateway implementation that produced the video.
	Provider string `json:"provider,omitempty"`
}

// ImageAsset is one reference image of a request, already read into memory.
type ImageAsset struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

func (a ImageAsset) Size() int64 {
	return int64(len(a.Data))
}

func scanJSON(value interface{}, target interface{}) error {
	if value == nil {
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, target)
}
