package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const errInvalidLimit = "invalid 'limit'; use a positive integer"

// @Summary      Recorded telemetry history, oldest first
// @Tags         telemetry
// @Produce      json
// @Param        limit  query     int  false  "max samples (defaults to the configured history length)"
// @Success      200    {object}  map[string]interface{}  "count, samples"
// @Failure      400    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /api/v1/telemetry/history [get]
// @Security     BearerAuth
func (h *Handler) getHistory(c *gin.Context) {
	limit := 0
	if qs := c.Query("limit"); qs != "" {
		v, err := strconv.Atoi(qs)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidLimit})
			return
		}
		limit = v
	}

	samples, err := h.services.History.List(c.Request.Context(), limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load telemetry history", "history_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(samples),
		"samples": samples,
	})
}
