package repository

import (
	"context"
	"time"

	"tradezone/internal/domain/entity"
)

type RoomRepository interface {
	// Create assigns room.ID. A second room for the same listing and pair fails with DUPLICATE_KEY.
	Create(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, id int64) (*entity.Room, error)
	// FindByPair expects an already normalized pair (a < b).
	FindByPair(ctx context.Context, listingID, a, b int64) (*entity.Room, error)
	ListByMember(ctx context.Context, memberID int64) ([]*entity.Room, error)
	// RecordMessage bumps last-message time and, unless unreadSide is empty, that side's unread counter.
	RecordMessage(ctx context.Context, roomID int64, at time.Time, unreadSide entity.Side) error
	ClearUnread(ctx context.Context, roomID int64, side entity.Side) error
}
