package routers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"ImageToVideo-server/metrics"
	"ImageToVideo-server/routers/api"
)

func InitRouter(h *api.Handler, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(), gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error("Handler panic", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": api.MessageRequestFailed})
	}))

	r.POST("/api/generate", h.Generate)
	v1 := r.Group("/v1/api")
	{
		v1.POST("/runs", h.CreateRun)
		v1.GET("/runs/:run_id", h.GetRun)
		v1.GET("/runs/:run_id/wss", h.RunWebSocket)
		v1.GET("/stages", h.ListStages)
		v1.POST("/suggestions", h.Suggestions)
	}
	r.GET("/health", api.Health)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(gatherer)))
	}
	return r
}

// requestLogger logs one line per request through slog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start).Round(time.Microsecond),
			"client_ip", c.ClientIP(),
		)
	}
}
