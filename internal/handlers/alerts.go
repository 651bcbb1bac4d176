package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const errAlertNotFound = "alert not found"

// @Summary      Active alerts, newest first
// @Tags         alerts
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, alerts"
// @Router       /api/v1/alerts [get]
// @Security     BearerAuth
func (h *Handler) getAlerts(c *gin.Context) {
	alerts := h.services.Dashboard.Alerts()
	c.JSON(http.StatusOK, gin.H{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

// @Summary      Dismiss an alert
// @Tags         alerts
// @Param        id   path  string  true  "alert id"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/alerts/{id} [delete]
// @Security     BearerAuth
func (h *Handler) dismissAlert(c *gin.Context) {
	if !h.services.Dashboard.DismissAlert(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": errAlertNotFound})
		return
	}
	c.Status(http.StatusNoContent)
}
