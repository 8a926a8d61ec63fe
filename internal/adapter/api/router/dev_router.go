package router

import (
	"github.com/labstack/echo/v4"

	"tradezone/internal/adapter/api/handler"
)

func SetupDevRouter(e *echo.Echo, devTokenHandler *handler.DevTokenHandler) {
	if devTokenHandler == nil {
		return
	}
	e.POST("/v1/dev/token", devTokenHandler.IssueToken)
}
