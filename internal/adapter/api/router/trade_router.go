package router

import (
	"github.com/labstack/echo/v4"

	"tradezone/internal/adapter/api/handler"
	"tradezone/internal/adapter/api/middleware"
	"tradezone/internal/domain/entity"
)

func SetupTradeRouter(e *echo.Echo, tradeHandler *handler.TradeHandler, authMiddleware *middleware.AuthMiddleware, rateLimit echo.MiddlewareFunc) {
	trades := e.Group("/v1/trades")
	trades.Use(authMiddleware.Authenticate)
	trades.Use(rateLimit)

	trades.GET("/:id", tradeHandler.GetTrade)

	trades.POST("/:id/complete/request", tradeHandler.Transition(entity.TransitionRequestComplete))
	trades.POST("/:id/complete/approve", tradeHandler.Transition(entity.TransitionApproveComplete))
	trades.POST("/:id/complete/reject", tradeHandler.Transition(entity.TransitionRejectComplete))

	trades.POST("/:id/cancel/request", tradeHandler.Transition(entity.TransitionRequestCancel))
	trades.POST("/:id/cancel/approve", tradeHandler.Transition(entity.TransitionApproveCancel))
	trades.POST("/:id/cancel/reject", tradeHandler.Transition(entity.TransitionRejectCancel))
}
