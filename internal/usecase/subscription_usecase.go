package usecase

import (
	"context"

	"tradezone/internal/domain/entity"
	"tradezone/internal/domain/repository"
	"tradezone/pkg/errors"
)

// SubscriptionUseCase gates topic subscriptions to trade participants.
// It runs once per subscribe attempt; open subscriptions are not re-checked.
type SubscriptionUseCase struct {
	tradeRepo repository.TradeRepository
}

func NewSubscriptionUseCase(tradeRepo repository.TradeRepository) *SubscriptionUseCase {
	return &SubscriptionUseCase{tradeRepo: tradeRepo}
}

func (uc *SubscriptionUseCase) Authorize(ctx context.Context, memberID int64, destination string) error {
	kind, id, err := entity.ParseTopic(destination)
	if err != nil {
		return err
	}

	var allowed bool
	switch kind {
	case entity.TopicChat:
		allowed, err = uc.tradeRepo.ExistsParticipantInRoom(ctx, id, memberID)
	case entity.TopicTrade:
		allowed, err = uc.tradeRepo.ExistsParticipantInTrade(ctx, id, memberID)
	}
	if err != nil {
		return err
	}
	if !allowed {
		return errors.Forbidden("You are not a participant of " + destination)
	}
	return nil
}
