package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	ws "tradezone/internal/infrastructure/websocket"
)

type HealthHandler struct {
	wsManager *ws.Manager
	nodeID    string
}

func NewHealthHandler(wsManager *ws.Manager, nodeID string) *HealthHandler {
	return &HealthHandler{
		wsManager: wsManager,
		nodeID:    nodeID,
	}
}

// CheckHealth reports the node id and its open websocket connections
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status": "ok",
		"node":   h.nodeID,
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if h.wsManager != nil {
		body["connections"] = h.wsManager.ClientCount()
	}
	return c.JSON(http.StatusOK, body)
}
