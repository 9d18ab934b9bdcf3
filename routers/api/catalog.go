package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ImageToVideo-server/models"
	"ImageToVideo-server/pipeline"
)

// ListStages serves GET /v1/api/stages.
func (h *Handler) ListStages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stages": h.Catalog.Stages()})
}

// Suggestions serves POST /v1/api/suggestions. An empty body is treated as
// the default configuration.
func (h *Handler) Suggestions(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": MessageMissingConfig})
		return
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	cfg, err := models.ParseVideoConfig(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"config":      cfg,
		"suggestions": pipeline.Suggestions(cfg),
	})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
