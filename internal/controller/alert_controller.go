package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"aml-monitor/internal/service"
)

type AlertController struct {
	alertService service.AlertService
}

func NewAlertController(alertService service.AlertService) *AlertController {
	return &AlertController{
		alertService: alertService,
	}
}

// ListUserAlerts handles GET /api/users/:userId/alerts.
func (c *AlertController) ListUserAlerts(ctx *gin.Context) {
	userID, err := strconv.ParseInt(ctx.Param("userId"), 10, 64)
	if err != nil || userID <= 0 {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid user ID"})
		return
	}
	limit, offset := paginationParams(ctx)

	alerts, err := c.alertService.ListUserAlerts(ctx.Request.Context(), userID, limit, offset)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to list alerts",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"alerts":  alerts,
		"count":   len(alerts),
	})
}

// MarkAlertRead handles PATCH /api/alerts/:id/read.
func (c *AlertController) MarkAlertRead(ctx *gin.Context) {
	if !c.updateAlert(ctx, c.alertService.MarkAlertRead) {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "read"})
}

// MarkAlertResolved handles PATCH /api/alerts/:id/resolve.
func (c *AlertController) MarkAlertResolved(ctx *gin.Context) {
	if !c.updateAlert(ctx, c.alertService.MarkAlertResolved) {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

func (c *AlertController) updateAlert(ctx *gin.Context, update func(ctx context.Context, id string) error) bool {
	err := update(ctx.Request.Context(), ctx.Param("id"))
	if err == nil {
		return true
	}
	if errors.Is(err, service.ErrInvalidAlertID) {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid alert ID"})
		return false
	}
	ctx.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "Failed to update alert",
		Message: err.Error(),
	})
	return false
}
