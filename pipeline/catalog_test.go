package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ImageToVideo-server/models"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	require.Equal(t, 8, c.Len())
	assert.Equal(t, []string{"ingest", "analysis", "storyboard", "motion", "styling", "audio", "render", "delivery"}, c.IDs())
	assert.Equal(t, "delivery", c.Last().ID)

	for i, id := range c.IDs() {
		idx, ok := c.Index(id)
		assert.True(t, ok)
		assert.Equal(t, i, idx)
	}
	_, ok := c.Index("missing")
	assert.False(t, ok)
}

func TestNewCatalog_Validation(t *testing.T) {
	_, err := NewCatalog(nil)
	assert.Error(t, err)

	_, err = NewCatalog([]models.StageDefinition{{ID: "a"}, {ID: ""}})
	assert.Error(t, err)

	_, err = NewCatalog([]models.StageDefinition{{ID: "a"}, {ID: "a"}})
	assert.Error(t, err)
}

func TestCatalog_StagesIsACopy(t *testing.T) {
	c := DefaultCatalog()
	stages := c.Stages()
	stages[0].ID = "mutated"
	assert.Equal(t, "ingest", c.Stages()[0].ID)
}
