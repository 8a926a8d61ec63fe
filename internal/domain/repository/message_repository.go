package repository

import (
	"context"

	"tradezone/internal/domain/entity"
)

type MessageRepository interface {
	// Create assigns msg.ID, strictly greater than every earlier id in the room.
	Create(ctx context.Context, msg *entity.Message) error
	// ListBefore returns up to limit messages with id < beforeID, newest first. beforeID 0 means no bound.
	ListBefore(ctx context.Context, roomID, beforeID int64, limit int) ([]*entity.Message, error)
	// ListAfter returns up to limit messages with id > afterID, oldest first.
	ListAfter(ctx context.Context, roomID, afterID int64, limit int) ([]*entity.Message, error)
	ListPage(ctx context.Context, roomID int64, limit, offset int) ([]*entity.Message, int64, error)
	Latest(ctx context.Context, roomID int64) (*entity.Message, error)
	// MarkAllRead flips side's read flag on every unread message and returns how many changed.
	MarkAllRead(ctx context.Context, roomID int64, side entity.Side) (int64, error)
}
