package http

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// SystemHandler serves the unauthenticated health and status endpoints.
type SystemHandler struct {
	resync Resyncer
}

// NewSystemHandler creates a SystemHandler. resync may be nil.
func NewSystemHandler(resync Resyncer) *SystemHandler {
	return &SystemHandler{resync: resync}
}

// Health handles GET /health.
func (h *SystemHandler) Health(c *gin.Context) {
	OK(c, gin.H{"status": "ok"})
}

// Status handles GET /status and returns runtime and push timing information.
func (h *SystemHandler) Status(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	data := gin.H{
		"uptime":      time.Since(startTime).String(),
		"goroutines":  runtime.NumGoroutine(),
		"go_version":  runtime.Version(),
		"alloc_bytes": mem.Alloc,
	}
	if h.resync != nil {
		last := h.resync.LastPush()
		data["reconcile"] = ReconcileStatus{
			LastPush:     last,
			LastNewEntry: h.resync.LastNewEntry(),
			Interval:     h.resync.Interval().String(),
			NextResync:   last.Add(h.resync.Interval()),
		}
	}
	OK(c, data)
}
