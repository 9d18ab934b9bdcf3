package pipeline

import (
	"errors"
	"fmt"

	"ImageToVideo-server/models"
)

var ErrUnknownStage = errors.New("unknown stage")

// Catalog is the fixed, ordered list of pipeline stages.
type Catalog struct {
	stages []models.StageDefinition
	index  map[string]int
}

// NewCatalog validates the stage list: it must be non-empty and ids must be
// unique and non-empty.
func NewCatalog(stages []models.StageDefinition) (*Catalog, error) {
	if len(stages) == 0 {
		return nil, errors.New("catalog needs at least one stage")
	}
	index := make(map[string]int, len(stages))
	for i, s := range stages {
		if s.ID == "" {
			return nil, fmt.Errorf("stage %d has an empty id", i)
		}
		if _, dup := index[s.ID]; dup {
			return nil, fmt.Errorf("duplicate stage id %q", s.ID)
		}
		index[s.ID] = i
	}
	return &Catalog{
		stages: append([]models.StageDefinition(nil), stages...),
		index:  index,
	}, nil
}

// MustCatalog is NewCatalog for static stage lists.
func MustCatalog(stages []models.StageDefinition) *Catalog {
	c, err := NewCatalog(stages)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Len() int {
	return len(c.stages)
}

func (c *Catalog) Stages() []models.StageDefinition {
	return append([]models.StageDefinition(nil), c.stages...)
}

func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.stages))
	for i, s := range c.stages {
		ids[i] = s.ID
	}
	return ids
}

// Index returns the position of a stage id.
func (c *Catalog) Index(id string) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

func (c *Catalog) Last() models.StageDefinition {
	return c.stages[len(c.stages)-1]
}

var defaultStages = []models.StageDefinition{
	{
		ID:               "ingest",
		Title:            "Asset ingestion",
		Description:      "Validating reference images, normalising colour space and resolution.",
		EstimatedMinutes: 1,
	},
	{
		ID:               "analysis",
		Title:            "Scene analysis",
		Description:      "Detecting subjects, depth cues and composition lines across the references.",
		EstimatedMinutes: 1,
	},
	{
		ID:               "storyboard",
		Title:            "Storyboard synthesis",
		Description:      "Sequencing the references into beats that match the requested duration.",
		EstimatedMinutes: 2,
	},
	{
		ID:               "motion",
		Title:            "Motion design",
		Description:      "Planning camera paths, parallax layers and subject motion.",
		EstimatedMinutes: 2,
	},
	{
		ID:               "styling",
		Title:            "Style transfer",
		Description:      "Applying the visual style and mood grading to every frame.",
		EstimatedMinutes: 3,
	},
	{
		ID:               "audio",
		Title:            "Soundtrack and narration",
		Description:      "Scoring the soundtrack and aligning optional narration to the cut.",
		EstimatedMinutes: 2,
	},
	{
		ID:               "render",
		Title:            "Neural rendering",
		Description:      "Rendering frames at the target aspect ratio and interpolating motion.",
		EstimatedMinutes: 4,
	},
	{
		ID:               "delivery",
		Title:            "Final delivery",
		Description:      "Encoding, generating the thumbnail and publishing the preview.",
		EstimatedMinutes: 1,
	},
}

// DefaultCatalog returns the eight-stage image-to-video pipeline.
func DefaultCatalog() *Catalog {
	return MustCatalog(defaultStages)
}
