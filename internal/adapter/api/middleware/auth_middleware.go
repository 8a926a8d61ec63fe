package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"tradezone/internal/infrastructure/auth"
	"tradezone/pkg/errors"
	"tradezone/pkg/logger"
	"tradezone/pkg/response"
)

// ContextKeyMemberID holds the authenticated member id (int64) on the echo context.
const ContextKeyMemberID = "member_id"

type AuthMiddleware struct {
	verifier auth.Verifier
}

func NewAuthMiddleware(verifier auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, err := BearerToken(c)
		if err != nil {
			return response.Error(c, err)
		}

		identity, err := m.verifier.Verify(c.Request().Context(), token)
		if err != nil {
			return response.Error(c, err)
		}

		bindMember(c, identity.MemberID)
		return next(c)
	}
}

// AuthenticateQuery accepts the token from ?token= as well, for websocket upgrades
// where browsers cannot set headers.
func (m *AuthMiddleware) AuthenticateQuery(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.QueryParam("token")
		if token == "" {
			var err error
			if token, err = BearerToken(c); err != nil {
				return response.Error(c, err)
			}
		}

		identity, err := m.verifier.Verify(c.Request().Context(), token)
		if err != nil {
			return response.Error(c, err)
		}

		bindMember(c, identity.MemberID)
		return next(c)
	}
}

func BearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.Unauthorized("Authorization header is required", nil)
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.Unauthorized("Invalid authorization format", nil)
	}
	return parts[1], nil
}

func bindMember(c echo.Context, memberID int64) {
	c.Set(ContextKeyMemberID, memberID)

	req := c.Request()
	l := logger.Ctx(req.Context()).With().Int64(logger.FieldMemberID, memberID).Logger()
	c.SetRequest(req.WithContext(logger.WithLogger(req.Context(), l)))
}

// MemberID reads the id bound by Authenticate. ok is false on unauthenticated routes.
func MemberID(c echo.Context) (int64, bool) {
	id, ok := c.Get(ContextKeyMemberID).(int64)
	return id, ok && id > 0
}
