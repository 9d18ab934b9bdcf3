package api

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ImageToVideo-server/models"
	"ImageToVideo-server/service"
)

const defaultWatchInterval = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CreateRun serves POST /v1/api/runs. Images go to the object store, the run
// is recorded as queued and handed to the worker queue.
func (h *Handler) CreateRun(c *gin.Context) {
	images, cfg, ferr := readGenerationForm(c)
	if ferr != nil {
		c.JSON(ferr.status, gin.H{"error": ferr.message})
		return
	}

	ctx := c.Request.Context()
	runID := uuid.NewString()
	keys := make(models.AssetKeys, 0, len(images))
	for i, img := range images {
		key := fmt.Sprintf("runs/%s/%d-%s", runID, i, service.SafeObjectName(img.Name))
		if err := h.Images.Put(ctx, key, bytes.NewReader(img.Data), img.Size(), img.ContentType); err != nil {
			slog.Error("Storing reference image failed", "run_id", runID, "object", key, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": MessageRequestFailed})
			return
		}
		keys = append(keys, key)
	}

	run := &models.Run{
		ID:        runID,
		Status:    models.RunStatusQueued,
		Config:    cfg,
		AssetKeys: keys,
	}
	if err := h.Runs.CreateRun(ctx, run); err != nil {
		slog.Error("Creating run failed", "run_id", runID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": MessageRequestFailed})
		return
	}

	if err := h.Queue.EnqueueRun(ctx, runID); err != nil {
		slog.Error("Enqueue run failed", "run_id", runID, "error", err)
		if uerr := h.Runs.UpdateStatus(ctx, runID, models.RunStatusFailed, MessageRequestFailed); uerr != nil {
			slog.Warn("Marking run failed did not stick", "run_id", runID, "error", uerr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": MessageRequestFailed})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": run.Status})
}

// GetRun serves GET /v1/api/runs/:run_id.
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.Runs.GetRun(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		if errors.Is(err, models.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		slog.Error("Loading run failed", "run_id", c.Param("run_id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

// RunWebSocket pushes the stored run whenever its status or timeline snapshot
// changes and closes once the run is settled. The database is the source of
// truth; the worker writes, this only reads.
func (h *Handler) RunWebSocket(c *gin.Context) {
	runID := c.Param("run_id")
	ctx := c.Request.Context()

	run, err := h.Runs.GetRun(ctx, runID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "run not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "run_id", runID, "error", err)
		return
	}
	defer conn.Close()

	// drain client frames so a close from the other side ends the loop
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(run); err != nil || run.IsTerminal() {
		closeNormally(conn)
		return
	}

	interval := h.WatchInterval
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prevStatus, prevVersion := run.Status, run.State.Version
	for {
		select {
		case <-gone:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cur, err := h.Runs.GetRun(ctx, runID)
		if err != nil {
			continue
		}
		if cur.Status == prevStatus && cur.State.Version == prevVersion {
			continue
		}
		if err := conn.WriteJSON(cur); err != nil {
			return
		}
		prevStatus, prevVersion = cur.Status, cur.State.Version

		if cur.IsTerminal() {
			closeNormally(conn)
			return
		}
	}
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run settled")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
