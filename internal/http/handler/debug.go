package handler

import (
	"net/http"
	"time"

	"github.com/edirooss/slowdog/internal/infrastructure/stackcapture"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxDebugSleep = 5 * time.Minute

type DebugHandler struct {
	log *zap.Logger
}

func NewDebugHandler(log *zap.Logger) *DebugHandler {
	return &DebugHandler{log: log.Named("debug")}
}

// Sleep blocks for ?d= (a Go duration, default 1s) so the watchdog has
// something slow to report. It stops early if the client goes away.
func (h *DebugHandler) Sleep(c *gin.Context) {
	d := time.Second
	if s := c.Query("d"); s != "" {
		parsed, err := time.ParseDuration(s)
		if err != nil || parsed < 0 || parsed > maxDebugSleep {
			c.JSON(http.StatusBadRequest, gin.H{"message": "d must be a duration between 0 and 5m"})
			return
		}
		d = parsed
	}

	ctx := c.Request.Context()
	stackcapture.Publish(ctx, "duration", d)
	stackcapture.Publish(ctx, "client_ip", c.ClientIP())

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		c.JSON(http.StatusOK, gin.H{"slept": d.String()})
	case <-ctx.Done():
		h.log.Debug("client went away", zap.Duration("requested", d))
		c.Status(499)
	}
}

// Ping answers liveness checks.
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
