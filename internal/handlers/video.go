package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"nightfall_dashboard/internal/service"
	"nightfall_dashboard/internal/video"
)

const (
	errNoCamera   = "no camera address known"
	errNoFrame    = "no frame available"
	errFrame      = "failed to encode frame"
	errNoVideo    = "no camera stream to retry"
	statusStopped = "stopped"
)

type startVideoRequest struct {
	IP string `json:"ip,omitempty" example:"192.168.4.3"`
}

// @Summary      Camera stream status
// @Tags         video
// @Produce      json
// @Success      200  {object}  models.VideoStatus
// @Router       /api/v1/video/state [get]
// @Security     BearerAuth
func (h *Handler) getVideoState(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Dashboard.VideoStatus())
}

// @Summary      Start the camera stream
// @Description  Empty body streams from the discovered (or fallback) camera address.
// @Tags         video
// @Accept       json
// @Produce      json
// @Param        body  body      startVideoRequest  false  "camera address"
// @Success      202   {object}  models.VideoStatus
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/video/start [post]
// @Security     BearerAuth
func (h *Handler) startVideo(c *gin.Context) {
	var req startVideoRequest
	if c.Request.ContentLength > 0 {
		if ok := h.bindJSONOrBadRequest(c, &req); !ok {
			return
		}
	}
	if err := h.services.Dashboard.StartVideo(req.IP); err != nil {
		if errors.Is(err, service.ErrNoCamera) {
			c.JSON(http.StatusConflict, gin.H{"error": errNoCamera})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, err.Error(), "video_start_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, h.services.Dashboard.VideoStatus())
}

// @Summary      Stop the camera stream
// @Tags         video
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/v1/video/stop [post]
// @Security     BearerAuth
func (h *Handler) stopVideo(c *gin.Context) {
	h.services.Dashboard.StopVideo()
	c.JSON(http.StatusOK, gin.H{"status": statusStopped})
}

// @Summary      Restart the last camera stream
// @Tags         video
// @Produce      json
// @Success      202  {object}  models.VideoStatus
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/video/retry [post]
// @Security     BearerAuth
func (h *Handler) retryVideo(c *gin.Context) {
	if err := h.services.Dashboard.RetryVideo(); err != nil {
		if errors.Is(err, video.ErrNoSource) {
			c.JSON(http.StatusConflict, gin.H{"error": errNoVideo})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, err.Error(), "video_retry_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, h.services.Dashboard.VideoStatus())
}

// @Summary      Latest rendered camera frame
// @Tags         video
// @Produce      jpeg
// @Success      200
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/video/frame.jpg [get]
// @Security     BearerAuth
func (h *Handler) getFrame(c *gin.Context) {
	data, ok, err := h.services.Dashboard.Frame()
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errFrame, "video_frame_failed", err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errNoFrame})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", data)
}
