package handler

import (
	"github.com/labstack/echo/v4"

	"tradezone/internal/domain/entity"
	"tradezone/internal/usecase"
	"tradezone/pkg/response"
)

type TradeHandler struct {
	tradeUseCase *usecase.TradeApprovalUseCase
}

func NewTradeHandler(tradeUseCase *usecase.TradeApprovalUseCase) *TradeHandler {
	return &TradeHandler{
		tradeUseCase: tradeUseCase,
	}
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// GetTrade returns the trade to a participant. ?fresh=true goes through the locked read.
func (h *TradeHandler) GetTrade(c echo.Context) error {
	memberID, err := currentMember(c)
	if err != nil {
		return response.Error(c, err)
	}
	tradeID, err := pathID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	var trade *entity.Trade
	if c.QueryParam("fresh") == "true" {
		trade, err = h.tradeUseCase.GetTradeFresh(c.Request().Context(), tradeID, memberID)
	} else {
		trade, err = h.tradeUseCase.GetTrade(c.Request().Context(), tradeID, memberID)
	}
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, trade)
}

// Transition builds the handler for one of the six trade moves.
func (h *TradeHandler) Transition(tr entity.Transition) echo.HandlerFunc {
	return func(c echo.Context) error {
		memberID, err := currentMember(c)
		if err != nil {
			return response.Error(c, err)
		}
		tradeID, err := pathID(c, "id")
		if err != nil {
			return response.Error(c, err)
		}

		var reason string
		if tr == entity.TransitionRequestCancel && c.Request().ContentLength != 0 {
			var req cancelRequest
			if err := bind(c, &req); err != nil {
				return response.Error(c, err)
			}
			reason = req.Reason
		}

		trade, err := h.tradeUseCase.Apply(c.Request().Context(), tradeID, memberID, tr, reason)
		if err != nil {
			return response.Error(c, err)
		}
		return response.Success(c, trade)
	}
}
