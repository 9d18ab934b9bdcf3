package pipeline

import (
	"fmt"

	"ImageToVideo-server/models"
)

// MilestoneFunc produces the feedback attached to a stage transition.
type MilestoneFunc func(stageID string, cfg models.VideoConfig) models.Milestone

var styleNotes = map[models.Style]string{
	models.StyleCinematic:    "wide establishing frames and shallow depth of field",
	models.StyleAnimated:     "bold silhouettes and exaggerated motion arcs",
	models.StyleMinimalistic: "negative space and a restrained palette",
	models.StyleSurreal:      "dreamlike transitions and impossible geometry",
	models.StyleDocumentary:  "natural light and observational framing",
}

var moodPacing = map[models.Mood]string{
	models.MoodDramatic:   "slow build-ups with a hard cut on the climax",
	models.MoodUpbeat:     "quick cuts landing on the beat",
	models.MoodRelaxing:   "long dissolves and steady holds",
	models.MoodMysterious: "lingering shots that reveal detail late",
}

var aspectFraming = map[models.AspectRatio]string{
	models.Aspect16x9: "keep subjects on the thirds for landscape playback",
	models.Aspect9x16: "centre subjects vertically for mobile feeds",
	models.Aspect1x1:  "crop tight, square frames punish empty edges",
	models.Aspect21x9: "use the extra width for lateral camera moves",
}

var soundtrackNotes = map[models.Soundtrack]string{
	models.SoundtrackOrchestral: "let strings swell under the key transitions",
	models.SoundtrackAmbient:    "keep the pad low so visual detail leads",
	models.SoundtrackElectronic: "sync cuts to the kick drum for momentum",
	models.SoundtrackNarrative:  "leave headroom in the mix for the voice-over",
}

// MilestoneFor returns stage-specific feedback and recommendations tailored to
// the configuration. Unknown stages get a generic note.
func MilestoneFor(stageID string, cfg models.VideoConfig) models.Milestone {
	m := models.Milestone{StageID: stageID}
	switch stageID {
	case "ingest":
		m.Feedback = "Reference images accepted. Consistent lighting across references gives the smoothest interpolation."
		m.Recommendations = []string{
			"Order references from establishing shot to close-up.",
			fmt.Sprintf("Framing: %s.", aspectFraming[cfg.AspectRatio]),
		}
	case "analysis":
		m.Feedback = fmt.Sprintf("Scene analysis tuned for a %s look: %s.", cfg.Style, styleNotes[cfg.Style])
		m.Recommendations = []string{
			"Subjects with clear edges separate better into depth layers.",
			"Avoid heavy compression artefacts in the source images.",
		}
	case "storyboard":
		beats := cfg.Duration / 5
		if beats < 1 {
			beats = 1
		}
		m.Feedback = fmt.Sprintf("Storyboard planned as %d beats over %ds with %s.", beats, cfg.Duration, moodPacing[cfg.Mood])
		m.Recommendations = []string{
			"Open on the strongest image to hook the viewer.",
			"Reserve the final beat for a clean resolve.",
		}
	case "motion":
		if cfg.AddCameraShake {
			m.Feedback = "Handheld camera shake enabled for an energetic, documentary feel."
		} else {
			m.Feedback = "Stabilised camera paths selected for smooth, deliberate motion."
		}
		m.Recommendations = []string{
			"Slow push-ins work best on portraits.",
		}
		if cfg.AddDepth {
			m.Recommendations = append(m.Recommendations, "Depth parallax is on: foreground elements will drift against the background.")
		} else {
			m.Recommendations = append(m.Recommendations, "Enable depth parallax to add dimensionality to flat references.")
		}
	case "styling":
		m.Feedback = fmt.Sprintf("Grading frames for a %s mood in %s style.", cfg.Mood, cfg.Style)
		m.Recommendations = []string{
			fmt.Sprintf("Pacing: %s.", moodPacing[cfg.Mood]),
			"Keep skin tones natural even under stylised grading.",
		}
	case "audio":
		m.Feedback = fmt.Sprintf("Scoring with a %s soundtrack: %s.", cfg.Soundtrack, soundtrackNotes[cfg.Soundtrack])
		if cfg.NarrationPrompt != "" {
			m.Recommendations = []string{
				"Narration detected: keep sentences short so they fit each beat.",
				"Duck the music by a few dB under the voice.",
			}
		} else {
			m.Recommendations = []string{
				"Add a narration prompt to guide viewers through the story.",
			}
		}
	case "render":
		m.Feedback = fmt.Sprintf("Rendering %ds at %s.", cfg.Duration, cfg.AspectRatio)
		m.Recommendations = []string{
			"Longer clips take proportionally longer to render.",
			fmt.Sprintf("Framing: %s.", aspectFraming[cfg.AspectRatio]),
		}
	case "delivery":
		m.Feedback = "Preparing the final encode and thumbnail."
		m.Recommendations = []string{
			"Review the first and last second for abrupt cuts.",
			"Export a square variant for social previews if needed.",
		}
	default:
		m.Feedback = fmt.Sprintf("Stage %s in progress.", stageID)
		m.Recommendations = []string{}
	}
	return m
}

// Suggestions returns the strategic suggestions shown next to the form for a
// configuration.
func Suggestions(cfg models.VideoConfig) []string {
	tips := []string{
		fmt.Sprintf("Lean into %s.", styleNotes[cfg.Style]),
		fmt.Sprintf("Match the %s mood with %s.", cfg.Mood, moodPacing[cfg.Mood]),
		fmt.Sprintf("For %s, %s.", cfg.AspectRatio, aspectFraming[cfg.AspectRatio]),
		fmt.Sprintf("Soundtrack: %s.", soundtrackNotes[cfg.Soundtrack]),
	}
	switch {
	case cfg.Duration <= 10:
		tips = append(tips, "Short clips land best with a single clear idea; use 1-3 references.")
	case cfg.Duration >= 45:
		tips = append(tips, "Long clips need variety: supply at least 5 references to avoid repetition.")
	default:
		tips = append(tips, "Aim for one reference image per 5 seconds of footage.")
	}
	if cfg.AddDepth && cfg.AddCameraShake {
		tips = append(tips, "Depth parallax plus camera shake can feel busy; consider dropping one for calmer scenes.")
	}
	if cfg.NarrationPrompt == "" && cfg.Soundtrack == models.SoundtrackNarrative {
		tips = append(tips, "The narrative soundtrack shines with a narration prompt.")
	}
	return tips
}
