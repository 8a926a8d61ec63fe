package router

import (
	"github.com/labstack/echo/v4"

	"tradezone/internal/adapter/api/handler"
	"tradezone/internal/adapter/api/middleware"
)

// Handlers bundles everything the routes mount. DevToken is nil outside development.
type Handlers struct {
	Health    *handler.HealthHandler
	Room      *handler.RoomHandler
	Message   *handler.MessageHandler
	Trade     *handler.TradeHandler
	WebSocket *handler.WebSocketHandler
	DevToken  *handler.DevTokenHandler
}

func Setup(e *echo.Echo, h Handlers, authMiddleware *middleware.AuthMiddleware, rateLimit echo.MiddlewareFunc) {
	SetupHealthRouter(e, h.Health)
	SetupRoomRouter(e, h.Room, h.Message, authMiddleware, rateLimit)
	SetupTradeRouter(e, h.Trade, authMiddleware, rateLimit)
	SetupWebSocketRouter(e, h.WebSocket, authMiddleware)
	SetupDevRouter(e, h.DevToken)
}
