package usecase

import (
	"context"
	"fmt"
	"strings"

	"tradezone/internal/domain/entity"
	"tradezone/internal/domain/repository"
	"tradezone/pkg/errors"
	"tradezone/pkg/logger"
)

const (
	maxTransitionAttempts = 2
	maxCancelReasonLength = 500
)

// TradeApprovalUseCase is the only writer of trade transitions.
type TradeApprovalUseCase struct {
	tx        repository.Transactor
	tradeRepo repository.TradeRepository
	members   repository.MemberDirectory
	messages  *MessageUseCase
	broadcast Broadcaster
	archiver  Archiver
	now       Clock
}

func NewTradeApprovalUseCase(
	tx repository.Transactor,
	tradeRepo repository.TradeRepository,
	members repository.MemberDirectory,
	messages *MessageUseCase,
	broadcast Broadcaster,
	archiver Archiver,
) *TradeApprovalUseCase {
	return &TradeApprovalUseCase{
		tx:        tx,
		tradeRepo: tradeRepo,
		members:   members,
		messages:  messages,
		broadcast: broadcast,
		archiver:  archiver,
		now:       utcNow,
	}
}

func (uc *TradeApprovalUseCase) RequestComplete(ctx context.Context, tradeID, actorID int64) (*entity.Trade, error) {
	return uc.transition(ctx, tradeID, actorID, entity.TransitionRequestComplete, "")
}

func (uc *TradeApprovalUseCase) ApproveComplete(ctx context.Context, tradeID, actorID int64) (*entity.Trade, error) {
	return uc.transition(ctx, tradeID, actorID, entity.TransitionApproveComplete, "")
}

func (uc *TradeApprovalUseCase) RejectComplete(ctx context.Context, tradeID, actorID int64) (*entity.Trade, error) {
	return uc.transition(ctx, tradeID, actorID, entity.TransitionRejectComplete, "")
}

func (uc *TradeApprovalUseCase) RequestCancel(ctx context.Context, tradeID, actorID int64, reason string) (*entity.Trade, error) {
	return uc.transition(ctx, tradeID, actorID, entity.TransitionRequestCancel, reason)
}

func (uc *TradeApprovalUseCase) ApproveCancel(ctx context.Context, tradeID, actorID int64) (*entity.Trade, error) {
	return uc.transition(ctx, tradeID, actorID, entity.TransitionApproveCancel, "")
}

func (uc *TradeApprovalUseCase) RejectCancel(ctx context.Context, tradeID, actorID int64) (*entity.Trade, error) {
	return uc.transition(ctx, tradeID, actorID, entity.TransitionRejectCancel, "")
}

// Apply runs any transition by name; the websocket and HTTP surfaces route through it.
func (uc *TradeApprovalUseCase) Apply(ctx context.Context, tradeID, actorID int64, tr entity.Transition, reason string) (*entity.Trade, error) {
	return uc.transition(ctx, tradeID, actorID, tr, reason)
}

// GetTrade returns the trade to one of its participants.
func (uc *TradeApprovalUseCase) GetTrade(ctx context.Context, tradeID, memberID int64) (*entity.Trade, error) {
	trade, err := uc.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !trade.IsParticipant(memberID) {
		return nil, errors.Forbidden("You are not a participant of this trade")
	}
	return trade, nil
}

// GetTradeFresh is GetTrade through the locked read, for screens about to approve.
func (uc *TradeApprovalUseCase) GetTradeFresh(ctx context.Context, tradeID, memberID int64) (*entity.Trade, error) {
	var trade *entity.Trade
	err := uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := uc.tradeRepo.GetByIDForUpdate(ctx, tradeID)
		if err != nil {
			return err
		}
		trade = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !trade.IsParticipant(memberID) {
		return nil, errors.Forbidden("You are not a participant of this trade")
	}
	return trade, nil
}

type appliedTransition struct {
	trade       *entity.Trade
	requesterID *int64
}

func (uc *TradeApprovalUseCase) transition(ctx context.Context, tradeID, actorID int64, tr entity.Transition, reason string) (*entity.Trade, error) {
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) > maxCancelReasonLength {
		return nil, errors.InvalidArgument("Cancel reason is too long")
	}

	log := logger.Ctx(ctx).With().
		Int64(logger.FieldTradeID, tradeID).
		Int64(logger.FieldMemberID, actorID).
		Str("transition", string(tr)).
		Logger()

	var (
		applied *appliedTransition
		err     error
	)
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		applied, err = uc.applyOnce(ctx, tradeID, actorID, tr, reason)
		if !errors.Is(err, errors.CodeConcurrentModification) {
			break
		}
		log.Debug().Int("attempt", attempt).Msg("trade changed underneath, retrying")
	}
	if errors.Is(err, errors.CodeConcurrentModification) {
		return nil, errors.Conflict("The trade was changed by someone else, please reload", err)
	}
	if err != nil {
		if appErr := errors.As(err); appErr.Status < 500 {
			log.Info().Str("code", appErr.Code).Msg("trade transition rejected")
		}
		return nil, err
	}

	trade := applied.trade
	log.Info().Str("status", string(trade.Status)).Str("pending_type", string(trade.PendingType)).Msg("trade transition applied")

	uc.announce(ctx, tr, trade, actorID, applied.requesterID, reason)

	if trade.IsTerminal() && uc.archiver != nil {
		uc.archiver.Enqueue(trade.Clone())
	}
	return trade, nil
}

// applyOnce is one read-transition-write cycle.
func (uc *TradeApprovalUseCase) applyOnce(ctx context.Context, tradeID, actorID int64, tr entity.Transition, reason string) (*appliedTransition, error) {
	var out *appliedTransition
	err := uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		trade, err := uc.tradeRepo.GetByID(ctx, tradeID)
		if err != nil {
			return err
		}
		if !trade.IsParticipant(actorID) {
			return errors.Forbidden("You are not a participant of this trade")
		}

		// approveComplete clears RequestedBy, so capture it first.
		requester := trade.RequestedBy
		if err := trade.Apply(tr, actorID, reason, uc.now()); err != nil {
			return err
		}
		if tr.IsRequest() {
			requester = trade.RequestedBy
		}
		if err := uc.tradeRepo.Update(ctx, trade); err != nil {
			return err
		}

		out = &appliedTransition{trade: trade, requesterID: requester}
		return nil
	})
	return out, err
}

// announce runs after the transition committed. The room id comes from the stored trade.
func (uc *TradeApprovalUseCase) announce(ctx context.Context, tr entity.Transition, trade *entity.Trade, actorID int64, requesterID *int64, reason string) {
	actorName := displayName(ctx, uc.members, actorID)

	if _, err := uc.messages.AppendSystem(ctx, trade.RoomID, SystemNotice(tr, actorName, reason)); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64(logger.FieldRoomID, trade.RoomID).Msg("failed to append trade notice")
	}

	signal := entity.TradeSignal{
		Type:        tr,
		TradeID:     trade.ID,
		RoomID:      trade.RoomID,
		Status:      trade.Status,
		PendingType: trade.PendingType,
		RequesterID: requesterID,
		ActorID:     actorID,
		ActorName:   actorName,
		Reason:      trade.CanceledReason,
		At:          trade.At(tr, trade.UpdatedAt),
	}
	if requesterID != nil {
		if *requesterID == actorID {
			signal.RequesterName = actorName
		} else {
			signal.RequesterName = displayName(ctx, uc.members, *requesterID)
		}
	}
	uc.broadcast.Publish(ctx, entity.TradeTopic(trade.ID), signal)
}

// SystemNotice is the chat line posted to the room for a transition.
func SystemNotice(tr entity.Transition, actorName, reason string) string {
	switch tr {
	case entity.TransitionRequestComplete:
		return fmt.Sprintf("[Completion requested] %s requested to complete the trade.", actorName)
	case entity.TransitionApproveComplete:
		return fmt.Sprintf("[Trade completed] %s approved the completion. The trade is complete.", actorName)
	case entity.TransitionRejectComplete:
		return fmt.Sprintf("[Completion rejected] %s rejected the completion request.", actorName)
	case entity.TransitionRequestCancel:
		text := fmt.Sprintf("[Cancellation requested] %s requested to cancel the trade.", actorName)
		if reason != "" {
			text += fmt.Sprintf(" Reason: %s", reason)
		}
		return text
	case entity.TransitionApproveCancel:
		return fmt.Sprintf("[Trade canceled] %s approved the cancellation. The trade has ended.", actorName)
	case entity.TransitionRejectCancel:
		return fmt.Sprintf("[Cancellation rejected] %s rejected the cancellation request.", actorName)
	}
	return fmt.Sprintf("%s updated the trade.", actorName)
}
