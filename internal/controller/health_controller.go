package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"aml-monitor/internal/database"
)

type HealthController struct {
	db *database.Database
}

func NewHealthController(db *database.Database) *HealthController {
	return &HealthController{db: db}
}

// Health handles GET /health. It reports unhealthy when a backing store stops
// answering pings.
func (c *HealthController) Health(ctx *gin.Context) {
	status := http.StatusOK
	payload := gin.H{
		"status":    "healthy",
		"service":   "aml-monitor",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := c.db.HealthCheck(ctx.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		payload["status"] = "unhealthy"
		payload["error"] = err.Error()
	}

	ctx.JSON(status, payload)
}

// Ready handles GET /ready.
func (c *HealthController) Ready(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
