package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	startTime     time.Time
	startTimeOnce sync.Once
)

// InitStartTime records the service start time (only the first call counts).
func InitStartTime(t time.Time) {
	startTimeOnce.Do(func() {
		startTime = t
	})
}

// HealthzHandler is the liveness probe: returns 200 while the process runs.
func HealthzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"type":   "liveness",
	})
}

// ReadinessHandler is the readiness probe: the service can take traffic only
// when the database answers a ping.
func (h *Handler) ReadinessHandler(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"type":    "readiness",
			"message": "database not initialized",
		})
		return
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"type":    "readiness",
			"message": "cannot obtain database connection",
		})
		return
	}
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"type":    "readiness",
			"message": "database ping failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"type":   "readiness",
		"uptime": time.Since(startTime).String(),
	})
}
