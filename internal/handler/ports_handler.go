// internal/handler/ports_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"monitor-service/internal/discovery"
	"monitor-service/internal/utils"
)

// PortsHandler lists attached ports
type PortsHandler struct {
	scanner *discovery.ScannerManager
	logger  *utils.ServiceLogger
}

// NewPortsHandler creates a new ports handler
func NewPortsHandler(scanner *discovery.ScannerManager, logger *zap.Logger) *PortsHandler {
	return &PortsHandler{
		scanner: scanner,
		logger:  utils.NewServiceLogger(logger, "ports-handler"),
	}
}

// ListPorts scans for attached ports
// @Summary List ports
// @Description Scan for attached ports and identify the boards behind them
// @Tags Ports
// @Produce json
// @Param type query string false "Scanner type" Enums(serial)
// @Success 200 {object} utils.APIResponse{data=object{ports_found=int,ports=[]discovery.DiscoveredPort}} "Ports listed"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /ports [get]
func (h *PortsHandler) ListPorts(c *gin.Context) {
	var (
		ports []*discovery.DiscoveredPort
		err   error
	)
	if scanType := c.Query("type"); scanType != "" {
		ports, err = h.scanner.ScanByType(c.Request.Context(), scanType)
	} else {
		ports, err = h.scanner.ScanAll(c.Request.Context())
	}
	if err != nil {
		h.logger.Error("Failed to scan ports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to scan ports", err)
		return
	}
	if ports == nil {
		ports = []*discovery.DiscoveredPort{}
	}

	utils.SuccessResponse(c, http.StatusOK, "Ports listed", gin.H{
		"ports_found": len(ports),
		"ports":       ports,
	})
}
