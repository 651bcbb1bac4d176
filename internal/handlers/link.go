package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"nightfall_dashboard/internal/link"
	"nightfall_dashboard/internal/models"
	"nightfall_dashboard/internal/protocol"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK           = "ok"
	statusConnecting   = "connecting"
	statusDisconnected = "disconnected"
	statusSent         = "sent"

	errLinkClosed    = "robot link is shut down"
	errNotConnected  = "not connected to robot"
	errThrottled     = "command throttled"
	errUnsupported   = "command not supported by robot protocol"
	errSendFailed    = "failed to send command"
	errInvalidVector = "left and right must be within [-255, 255]"
	errEmptyCommand  = "either command or left/right is required"

	maxMotorPower = 255
)

// commandRequest carries either a named command or a power vector.
type commandRequest struct {
	Command string `json:"command,omitempty" example:"forward"`
	Left    *int   `json:"left,omitempty" example:"120"`
	Right   *int   `json:"right,omitempty" example:"-120"`
}

func (r commandRequest) toMotorCommand() (models.MotorCommand, error) {
	if r.Command != "" {
		name, err := models.ParseCommandName(r.Command)
		if err != nil {
			return models.MotorCommand{}, err
		}
		return models.Named(name), nil
	}
	if r.Left == nil || r.Right == nil {
		return models.MotorCommand{}, errors.New(errEmptyCommand)
	}
	if abs(*r.Left) > maxMotorPower || abs(*r.Right) > maxMotorPower {
		return models.MotorCommand{}, errors.New(errInvalidVector)
	}
	return models.Vector(*r.Left, *r.Right), nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// @Summary      Robot link state
// @Tags         link
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "state, stats"
// @Router       /api/v1/link/state [get]
// @Security     BearerAuth
func (h *Handler) getLinkState(c *gin.Context) {
	snap := h.services.Dashboard.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"state":     snap.Connection,
		"stats":     snap.Stats,
		"telemetry": snap.Telemetry,
		"health":    snap.Health,
	})
}

// @Summary      Connect to the robot
// @Tags         link
// @Produce      json
// @Success      202  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/link/connect [post]
// @Security     BearerAuth
func (h *Handler) connectLink(c *gin.Context) {
	if err := h.services.Dashboard.Connect(); err != nil {
		h.logAndJSONError(c, http.StatusServiceUnavailable, errLinkClosed, "link_connect_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusConnecting, "state": h.services.Dashboard.LinkState()})
}

// @Summary      Drop the link and dial again with a fresh retry budget
// @Tags         link
// @Produce      json
// @Success      202  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/link/reconnect [post]
// @Security     BearerAuth
func (h *Handler) reconnectLink(c *gin.Context) {
	if err := h.services.Dashboard.Reconnect(); err != nil {
		h.logAndJSONError(c, http.StatusServiceUnavailable, errLinkClosed, "link_reconnect_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusConnecting, "state": h.services.Dashboard.LinkState()})
}

// @Summary      Disconnect from the robot
// @Tags         link
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/v1/link/disconnect [post]
// @Security     BearerAuth
func (h *Handler) disconnectLink(c *gin.Context) {
	h.services.Dashboard.Disconnect()
	c.JSON(http.StatusOK, gin.H{"status": statusDisconnected})
}

// @Summary      Send a motor command
// @Description  Named commands: forward, backward, left, right, stop, emergency, emergency_reset, auto_toggle, rotate.
// @Tags         link
// @Accept       json
// @Produce      json
// @Param        body  body      commandRequest  true  "command"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /api/v1/commands [post]
// @Security     BearerAuth
func (h *Handler) sendCommand(c *gin.Context) {
	var req commandRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	cmd, err := req.toMotorCommand()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.services.Dashboard.SendCommand(cmd)
	switch {
	case err == nil:
		if cmd.Name == models.CmdEmergency && h.log != nil {
			h.log.Warnw("emergency_stop_requested", "operator", operatorID(c))
		}
		c.JSON(http.StatusOK, gin.H{"status": statusSent, "command": cmd.String()})
	case errors.Is(err, link.ErrNotConnected):
		c.JSON(http.StatusConflict, gin.H{"error": errNotConnected})
	case errors.Is(err, link.ErrThrottled):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": errThrottled})
	case errors.Is(err, protocol.ErrUnsupportedCommand):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errUnsupported})
	case errors.Is(err, link.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errLinkClosed})
	default:
		h.logAndJSONError(c, http.StatusBadGateway, errSendFailed, "command_send_failed", err, "command", cmd.String())
	}
}
