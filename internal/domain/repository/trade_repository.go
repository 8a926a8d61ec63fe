package repository

import (
	"context"

	"tradezone/internal/domain/entity"
)

type TradeRepository interface {
	// Create assigns trade.ID and Version. A second trade for a room fails with DUPLICATE_KEY.
	Create(ctx context.Context, trade *entity.Trade) error
	GetByID(ctx context.Context, id int64) (*entity.Trade, error)
	// GetByIDForUpdate is the locked read. Only use it where a guaranteed current view is needed.
	GetByIDForUpdate(ctx context.Context, id int64) (*entity.Trade, error)
	GetByRoomID(ctx context.Context, roomID int64) (*entity.Trade, error)
	// Update writes trade if its stored version still equals trade.Version, then bumps trade.Version.
	// A stale version fails with CONCURRENT_MODIFICATION and writes nothing.
	Update(ctx context.Context, trade *entity.Trade) error
	ExistsParticipantInRoom(ctx context.Context, roomID, memberID int64) (bool, error)
	ExistsParticipantInTrade(ctx context.Context, tradeID, memberID int64) (bool, error)
}
