package handler

import (
	"context"
	"encoding/json"

	"tradezone/internal/domain/entity"
	"tradezone/internal/usecase"
	"tradezone/pkg/errors"
)

// SEND destinations accepted over the websocket.
const (
	DestinationSendMessage = "app/send-message"
	DestinationChatSend    = "app/chat.send"
	DestinationMarkRead    = "app/mark-read"
)

var tradeDestinations = map[string]entity.Transition{
	"app/trade.complete.request": entity.TransitionRequestComplete,
	"app/trade.complete.approve": entity.TransitionApproveComplete,
	"app/trade.complete.reject":  entity.TransitionRejectComplete,
	"app/trade.cancel.request":   entity.TransitionRequestCancel,
	"app/trade.cancel.approve":   entity.TransitionApproveCancel,
	"app/trade.cancel.reject":    entity.TransitionRejectCancel,
}

type sendPayload struct {
	RoomID  int64  `json:"roomId"`
	Content string `json:"content"`
}

type roomPayload struct {
	RoomID int64 `json:"roomId"`
}

type tradeActionPayload struct {
	TradeID int64  `json:"tradeId"`
	Reason  string `json:"reason"`
}

// ActionDispatcher routes websocket SEND frames to the usecases.
// The acting member always comes from the connection, never from the body.
type ActionDispatcher struct {
	messages *usecase.MessageUseCase
	trades   *usecase.TradeApprovalUseCase
}

func NewActionDispatcher(messages *usecase.MessageUseCase, trades *usecase.TradeApprovalUseCase) *ActionDispatcher {
	return &ActionDispatcher{messages: messages, trades: trades}
}

// Dispatch routes a SEND frame to the usecase behind its destination, acting as memberID
func (d *ActionDispatcher) Dispatch(ctx context.Context, memberID int64, destination string, body json.RawMessage) (interface{}, error) {
	if tr, ok := tradeDestinations[destination]; ok {
		var p tradeActionPayload
		if err := decode(body, &p); err != nil {
			return nil, err
		}
		if p.TradeID <= 0 {
			return nil, errors.InvalidArgument("tradeId is required")
		}
		return d.trades.Apply(ctx, p.TradeID, memberID, tr, p.Reason)
	}

	switch destination {
	case DestinationSendMessage, DestinationChatSend:
		var p sendPayload
		if err := decode(body, &p); err != nil {
			return nil, err
		}
		if p.RoomID <= 0 {
			return nil, errors.InvalidArgument("roomId is required")
		}
		msg, err := d.messages.Append(ctx, p.RoomID, memberID, p.Content)
		if err != nil {
			return nil, err
		}
		return entity.EventFor(msg), nil

	case DestinationMarkRead:
		var p roomPayload
		if err := decode(body, &p); err != nil {
			return nil, err
		}
		if p.RoomID <= 0 {
			return nil, errors.InvalidArgument("roomId is required")
		}
		marked, err := d.messages.MarkRead(ctx, p.RoomID, memberID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"marked": marked}, nil
	}

	return nil, errors.InvalidArgument("Unknown destination " + destination)
}

func decode(body json.RawMessage, v interface{}) error {
	if len(body) == 0 {
		return errors.InvalidArgument("Frame body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.InvalidArgument("Invalid frame body")
	}
	return nil
}
