package router

import (
	"github.com/labstack/echo/v4"

	"tradezone/internal/adapter/api/handler"
	"tradezone/internal/adapter/api/middleware"
)

func SetupRoomRouter(e *echo.Echo, roomHandler *handler.RoomHandler, messageHandler *handler.MessageHandler, authMiddleware *middleware.AuthMiddleware, rateLimit echo.MiddlewareFunc) {
	rooms := e.Group("/v1/rooms")
	rooms.Use(authMiddleware.Authenticate)
	rooms.Use(rateLimit)

	rooms.GET("", roomHandler.ListMyRooms)
	rooms.POST("", roomHandler.OpenNegotiation)

	rooms.GET("/:id/messages", messageHandler.GetMessages)
	rooms.POST("/:id/messages", messageHandler.SendMessage)
	rooms.POST("/:id/read", messageHandler.MarkRead)
}
