package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"tradezone/pkg/logger"
)

const HeaderRequestID = "X-Request-ID"

// RequestLogger tags every request with an id, attaches a scoped logger to the
// request context and logs one line when the handler returns.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			requestID := req.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, requestID)

			l := logger.L().With().Str(logger.FieldRequestID, requestID).Logger()
			c.SetRequest(req.WithContext(logger.WithLogger(req.Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			event := logger.Ctx(c.Request().Context()).Info()
			if status >= 500 {
				event = logger.Ctx(c.Request().Context()).Error()
			}
			event.
				Str(logger.FieldMethod, req.Method).
				Str(logger.FieldPath, c.Path()).
				Int(logger.FieldStatus, status).
				Int64(logger.FieldLatency, time.Since(start).Milliseconds()).
				Msg("request")
			return nil
		}
	}
}
