package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Generate serves POST /api/generate: one synchronous gateway call, no
// timeline.
func (h *Handler) Generate(c *gin.Context) {
	images, cfg, ferr := readGenerationForm(c)
	if ferr != nil {
		c.JSON(ferr.status, gin.H{"error": ferr.message})
		return
	}

	video, err := h.Gateway.Generate(c.Request.Context(), images, cfg)
	if err == nil && video == nil {
		err = errNoVideo
	}
	if err != nil {
		slog.Error("Generate request failed", "assets", len(images), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": MessageRequestFailed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": video})
}
