// internal/handler/monitor_handler.go
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"monitor-service/internal/model"
	"monitor-service/internal/repository"
	"monitor-service/internal/service"
	"monitor-service/internal/utils"
)

// MonitorHandler exposes the monitor control RPC
type MonitorHandler struct {
	monitorService *service.MonitorService
	events         repository.EventRepository
	logger         *utils.ServiceLogger
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(monitorService *service.MonitorService, events repository.EventRepository, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitorService: monitorService,
		events:         events,
		logger:         utils.NewServiceLogger(logger, "monitor-handler"),
	}
}

// SendRequest is the body of POST /monitor/send
type SendRequest struct {
	Message string `json:"message"`
}

// StreamResponse carries the address of the streaming channel
type StreamResponse struct {
	Address string `json:"address"`
}

// Connect opens a monitor
// @Summary Connect monitor
// @Description Open the serial port described by the config and start streaming it
// @Tags Monitor
// @Accept json
// @Produce json
// @Param request body model.MonitorConfig true "Monitor config"
// @Success 200 {object} utils.APIResponse{data=model.Status} "Connected"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 422 {object} utils.APIResponse{data=model.Status} "Connect failed"
// @Router /monitor/connect [post]
func (h *MonitorHandler) Connect(c *gin.Context) {
	var cfg model.MonitorConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status := h.monitorService.Connect(c.Request.Context(), cfg)
	if !status.IsOK() {
		h.logger.Warn("Monitor connect failed",
			zap.String("port", cfg.Port.Address),
			zap.String("reason", status.Error()),
		)
	}
	statusResponse(c, "Monitor connected", status)
}

// Disconnect closes the monitor
// @Summary Disconnect monitor
// @Tags Monitor
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.Status} "Disconnected"
// @Failure 422 {object} utils.APIResponse{data=model.Status} "Not connected"
// @Router /monitor/disconnect [post]
func (h *MonitorHandler) Disconnect(c *gin.Context) {
	statusResponse(c, "Monitor disconnected", h.monitorService.Disconnect(c.Request.Context()))
}

// Send writes a message to the device
// @Summary Send message
// @Description Write the message to the open port as is; the caller appends any line ending
// @Tags Monitor
// @Accept json
// @Produce json
// @Param request body SendRequest true "Message"
// @Success 200 {object} utils.APIResponse{data=model.Status} "Sent"
// @Failure 422 {object} utils.APIResponse{data=model.Status} "Not sent"
// @Router /monitor/send [post]
func (h *MonitorHandler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	statusResponse(c, "Message sent", h.monitorService.Send(c.Request.Context(), req.Message))
}

// GetSettings describes the settings of a port
// @Summary Get port settings
// @Tags Monitor
// @Produce json
// @Param port query string true "Port address"
// @Param protocol query string false "Port protocol" default(serial)
// @Param fqbn query string false "Board FQBN"
// @Param board query string false "Board name"
// @Success 200 {object} utils.APIResponse{data=model.SettingsDescriptor} "Settings"
// @Failure 400 {object} utils.APIResponse "Missing port"
// @Router /monitor/settings [get]
func (h *MonitorHandler) GetSettings(c *gin.Context) {
	port := model.PortRef{
		Address:  c.Query("port"),
		Protocol: c.DefaultQuery("protocol", "serial"),
	}
	if port.IsZero() {
		utils.ErrorResponse(c, http.StatusBadRequest, "port is required", nil)
		return
	}
	board := model.BoardRef{Name: c.Query("board"), FQBN: c.Query("fqbn")}

	settings, err := h.monitorService.GetCurrentSettings(c.Request.Context(), board, port)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to read settings", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Settings retrieved", settings)
}

// ChangeSettings applies selected setting values
// @Summary Change port settings
// @Tags Monitor
// @Accept json
// @Produce json
// @Param request body model.SettingsDescriptor true "Settings"
// @Success 200 {object} utils.APIResponse{data=model.Status} "Changed"
// @Failure 422 {object} utils.APIResponse{data=model.Status} "Rejected"
// @Router /monitor/settings [put]
func (h *MonitorHandler) ChangeSettings(c *gin.Context) {
	var settings model.SettingsDescriptor
	if err := c.ShouldBindJSON(&settings); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	statusResponse(c, "Settings changed", h.monitorService.ChangeSettings(c.Request.Context(), settings))
}

// GetStreamAddress returns the websocket address serial data is streamed on
// @Summary Stream address
// @Tags Monitor
// @Produce json
// @Success 200 {object} utils.APIResponse{data=StreamResponse}
// @Failure 500 {object} utils.APIResponse "Stream unavailable"
// @Router /monitor/stream [get]
func (h *MonitorHandler) GetStreamAddress(c *gin.Context) {
	address, err := h.monitorService.StreamAddress(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to start stream hub", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Stream unavailable", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Stream address", StreamResponse{Address: address})
}

// GetCurrent returns the config of the open monitor
// @Summary Current monitor
// @Tags Monitor
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.MonitorConfig}
// @Failure 404 {object} utils.APIResponse "Not connected"
// @Router /monitor/current [get]
func (h *MonitorHandler) GetCurrent(c *gin.Context) {
	current := h.monitorService.Current()
	if current == nil {
		utils.ErrorResponse(c, http.StatusNotFound, model.NotConnected.Error(), nil)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Monitor connected", current)
}

// ListEvents returns the newest journal entries
// @Summary Monitor events
// @Tags Monitor
// @Produce json
// @Param limit query int false "Maximum entries" default(100)
// @Param port query string false "Port address"
// @Param type query string false "Event type" Enums(MONITOR_CONNECTED, MONITOR_DISCONNECTED, MONITOR_ERROR, SETTINGS_CHANGED)
// @Success 200 {object} utils.APIResponse{data=[]model.MonitorEvent}
// @Failure 400 {object} utils.APIResponse "Invalid limit"
// @Router /monitor/events [get]
func (h *MonitorHandler) ListEvents(c *gin.Context) {
	filter := &repository.EventFilter{}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			utils.ErrorResponse(c, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		filter.Limit = limit
	}
	if port := c.Query("port"); port != "" {
		filter.PortAddress = &port
	}
	if t := c.Query("type"); t != "" {
		eventType := model.EventType(t)
		filter.EventType = &eventType
	}

	events, err := h.events.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list events", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list events", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Events retrieved", events)
}

// statusResponse writes a Status as the response data. A non-OK status is
// answered with 422 so plain HTTP clients see the failure.
func statusResponse(c *gin.Context, message string, status model.Status) {
	if status.IsOK() {
		utils.SuccessResponse(c, http.StatusOK, message, status)
		return
	}

	code := "MONITOR_ERROR"
	if status.Code != nil {
		code = string(*status.Code)
	}
	c.JSON(http.StatusUnprocessableEntity, utils.APIResponse{
		Success:   false,
		Message:   status.Error(),
		Data:      status,
		Error:     &utils.APIError{Code: code, Message: status.Error()},
		Timestamp: time.Now(),
		RequestID: c.GetString(utils.RequestIDKey),
	})
}
