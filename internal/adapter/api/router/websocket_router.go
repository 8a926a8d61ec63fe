package router

import (
	"github.com/labstack/echo/v4"

	"tradezone/internal/adapter/api/handler"
	"tradezone/internal/adapter/api/middleware"
)

// SetupWebSocketRouter mounts /ws. The token may come from ?token= since browsers cannot set headers on upgrades.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler, authMiddleware *middleware.AuthMiddleware) {
	e.GET("/ws", wsHandler.HandleWebSocket, authMiddleware.AuthenticateQuery)
}
