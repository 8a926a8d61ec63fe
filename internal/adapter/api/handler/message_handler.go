package handler

import (
	"github.com/labstack/echo/v4"

	"tradezone/internal/usecase"
	"tradezone/pkg/response"
)

type MessageHandler struct {
	messageUseCase *usecase.MessageUseCase
}

func NewMessageHandler(messageUseCase *usecase.MessageUseCase) *MessageHandler {
	return &MessageHandler{
		messageUseCase: messageUseCase,
	}
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// GetMessages pages through a room's history, newest first.
// ?before_id= walks by cursor; ?page= switches to offset paging.
func (h *MessageHandler) GetMessages(c echo.Context) error {
	memberID, err := currentMember(c)
	if err != nil {
		return response.Error(c, err)
	}
	roomID, err := pathID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	beforeID, err := queryInt(c, "before_id")
	if err != nil {
		return response.Error(c, err)
	}
	page, err := queryInt(c, "page")
	if err != nil {
		return response.Error(c, err)
	}
	size, err := queryInt(c, "size")
	if err != nil {
		return response.Error(c, err)
	}

	q := usecase.HistoryQuery{
		BeforeID: beforeID,
		Page:     int(page),
		Size:     int(size),
		Paged:    c.QueryParam("page") != "",
	}
	history, err := h.messageUseCase.History(c.Request().Context(), roomID, memberID, q)
	if err != nil {
		return response.Error(c, err)
	}

	if q.Paged {
		return response.Paginated(c, history.Messages, history.Total, history.Page, history.Size)
	}
	return response.Cursor(c, history.Messages, history.NextCursor)
}

// SendMessage appends a chat line from the caller to the room
func (h *MessageHandler) SendMessage(c echo.Context) error {
	memberID, err := currentMember(c)
	if err != nil {
		return response.Error(c, err)
	}
	roomID, err := pathID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	var req sendMessageRequest
	if err := bind(c, &req); err != nil {
		return response.Error(c, err)
	}

	msg, err := h.messageUseCase.Append(c.Request().Context(), roomID, memberID, req.Content)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, msg)
}

// MarkRead clears the caller's unread state in the room
func (h *MessageHandler) MarkRead(c echo.Context) error {
	memberID, err := currentMember(c)
	if err != nil {
		return response.Error(c, err)
	}
	roomID, err := pathID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	marked, err := h.messageUseCase.MarkRead(c.Request().Context(), roomID, memberID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int64{"marked": marked})
}
