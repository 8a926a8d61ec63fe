package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"tradezone/internal/adapter/api/middleware"
	"tradezone/pkg/errors"
)

// currentMember returns the member bound by the auth middleware.
func currentMember(c echo.Context) (int64, error) {
	memberID, ok := middleware.MemberID(c)
	if !ok {
		return 0, errors.Unauthorized("Authentication required", nil)
	}
	return memberID, nil
}

// pathID parses a positive id path parameter
func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.InvalidArgument("Invalid " + name)
	}
	return id, nil
}

// queryInt parses an optional non-negative integer query parameter; absent means 0.
func queryInt(c echo.Context, name string) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, errors.InvalidArgument("Invalid " + name)
	}
	return v, nil
}

// bind decodes the request body into req and runs its validate tags.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errors.InvalidArgument("Invalid request body")
	}
	return c.Validate(req)
}
