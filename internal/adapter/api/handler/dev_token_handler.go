package handler

import (
	"github.com/labstack/echo/v4"

	"tradezone/internal/domain/repository"
	"tradezone/internal/infrastructure/auth"
	"tradezone/pkg/response"
)

// DevTokenHandler issues HMAC tokens for seeded members. Only mounted in development.
type DevTokenHandler struct {
	issuer  *auth.HMACVerifier
	members repository.MemberDirectory
}

func NewDevTokenHandler(issuer *auth.HMACVerifier, members repository.MemberDirectory) *DevTokenHandler {
	return &DevTokenHandler{
		issuer:  issuer,
		members: members,
	}
}

type devTokenRequest struct {
	MemberID int64 `json:"member_id" validate:"required,gt=0"`
}

// IssueToken signs a token for an existing member, development only
func (h *DevTokenHandler) IssueToken(c echo.Context) error {
	var req devTokenRequest
	if err := bind(c, &req); err != nil {
		return response.Error(c, err)
	}

	member, err := h.members.GetMember(c.Request().Context(), req.MemberID)
	if err != nil {
		return response.Error(c, err)
	}

	token, expiresAt, err := h.issuer.Issue(member.ID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt,
		"member": map[string]interface{}{
			"id":           member.ID,
			"display_name": member.DisplayName,
		},
	})
}
