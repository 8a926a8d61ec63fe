package handler

import (
	"github.com/labstack/echo/v4"

	"tradezone/internal/usecase"
	"tradezone/pkg/response"
)

type RoomHandler struct {
	roomUseCase *usecase.RoomUseCase
}

func NewRoomHandler(roomUseCase *usecase.RoomUseCase) *RoomHandler {
	return &RoomHandler{
		roomUseCase: roomUseCase,
	}
}

type openNegotiationRequest struct {
	ListingID int64 `json:"listing_id" validate:"required,gt=0"`
}

// ListMyRooms returns the caller's rooms, most recently active first.
func (h *RoomHandler) ListMyRooms(c echo.Context) error {
	memberID, err := currentMember(c)
	if err != nil {
		return response.Error(c, err)
	}

	rooms, err := h.roomUseCase.ListMyRooms(c.Request().Context(), memberID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, rooms)
}

// OpenNegotiation resolves the caller's room with the listing's seller and its trade.
func (h *RoomHandler) OpenNegotiation(c echo.Context) error {
	memberID, err := currentMember(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req openNegotiationRequest
	if err := bind(c, &req); err != nil {
		return response.Error(c, err)
	}

	negotiation, err := h.roomUseCase.OpenNegotiation(c.Request().Context(), memberID, req.ListingID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, negotiation)
}
