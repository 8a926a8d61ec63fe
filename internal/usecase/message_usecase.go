package usecase

import (
	"context"

	"tradezone/internal/domain/entity"
	"tradezone/internal/domain/repository"
	"tradezone/pkg/errors"
	"tradezone/pkg/logger"
)

const (
	DefaultHistorySize = 30
	MaxHistorySize     = 100
)

type MessageUseCase struct {
	tx          repository.Transactor
	roomRepo    repository.RoomRepository
	messageRepo repository.MessageRepository
	broadcaster Broadcaster
	now         Clock
}

func NewMessageUseCase(
	tx repository.Transactor,
	roomRepo repository.RoomRepository,
	messageRepo repository.MessageRepository,
	broadcaster Broadcaster,
) *MessageUseCase {
	return &MessageUseCase{
		tx:          tx,
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		broadcaster: broadcaster,
		now:         utcNow,
	}
}

// HistoryQuery selects either cursor paging (BeforeID, newest first) or offset paging (Page).
type HistoryQuery struct {
	BeforeID int64
	Page     int
	Size     int
	Paged    bool
}

type HistoryPage struct {
	Messages   []*entity.Message `json:"messages"`
	NextCursor *int64            `json:"next_cursor,omitempty"`
	HasMore    bool              `json:"has_more"`
	Total      int64             `json:"total,omitempty"`
	Page       int               `json:"page,omitempty"`
	Size       int               `json:"size"`
}

// Append stores a chat line from senderID and publishes it to the room topic once committed.
// The other side's unread counter goes up by one.
func (uc *MessageUseCase) Append(ctx context.Context, roomID, senderID int64, content string) (*entity.Message, error) {
	var msg *entity.Message
	err := uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		room, err := uc.roomRepo.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		side, ok := room.SideOf(senderID)
		if !ok {
			return errors.Forbidden("You are not a participant of this room")
		}

		m, err := entity.NewTextMessage(room.ID, senderID, side, content, uc.now())
		if err != nil {
			return err
		}
		if err := uc.messageRepo.Create(ctx, m); err != nil {
			return err
		}
		if err := uc.roomRepo.RecordMessage(ctx, room.ID, m.CreatedAt, side.Other()); err != nil {
			return err
		}

		uc.broadcaster.PublishAfterCommit(ctx, entity.ChatTopic(room.ID), entity.EventFor(m))
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Debug().Int64(logger.FieldRoomID, roomID).Int64("message_id", msg.ID).Msg("message appended")
	return msg, nil
}

// AppendSystem stores an informational notice. Unread counters are left alone.
func (uc *MessageUseCase) AppendSystem(ctx context.Context, roomID int64, content string) (*entity.Message, error) {
	var msg *entity.Message
	err := uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		room, err := uc.roomRepo.GetByID(ctx, roomID)
		if err != nil {
			return err
		}

		m, err := entity.NewSystemMessage(room.ID, content, uc.now())
		if err != nil {
			return err
		}
		if err := uc.messageRepo.Create(ctx, m); err != nil {
			return err
		}
		if err := uc.roomRepo.RecordMessage(ctx, room.ID, m.CreatedAt, ""); err != nil {
			return err
		}

		uc.broadcaster.PublishAfterCommit(ctx, entity.ChatTopic(room.ID), entity.EventFor(m))
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkRead clears readerID's unread counter and read flags. Repeating it changes nothing.
// The counter is cleared before the flags so a message racing in is over-reported, never hidden.
func (uc *MessageUseCase) MarkRead(ctx context.Context, roomID, readerID int64) (int64, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	side, ok := room.SideOf(readerID)
	if !ok {
		return 0, errors.Forbidden("You are not a participant of this room")
	}

	if room.UnreadFor(side) > 0 {
		if err := uc.roomRepo.ClearUnread(ctx, room.ID, side); err != nil {
			return 0, err
		}
	}
	return uc.messageRepo.MarkAllRead(ctx, room.ID, side)
}

// History serves one page of a room's messages, newest first, to a participant.
func (uc *MessageUseCase) History(ctx context.Context, roomID, memberID int64, q HistoryQuery) (*HistoryPage, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsParticipant(memberID) {
		return nil, errors.Forbidden("You are not a participant of this room")
	}

	size := q.Size
	if size <= 0 {
		size = DefaultHistorySize
	}
	if size > MaxHistorySize {
		size = MaxHistorySize
	}

	if q.Paged {
		page := q.Page
		if page < 1 {
			page = 1
		}
		msgs, total, err := uc.messageRepo.ListPage(ctx, room.ID, size, (page-1)*size)
		if err != nil {
			return nil, err
		}
		return &HistoryPage{
			Messages: nonNil(msgs),
			HasMore:  int64(page*size) < total,
			Total:    total,
			Page:     page,
			Size:     size,
		}, nil
	}

	msgs, err := uc.messageRepo.ListBefore(ctx, room.ID, q.BeforeID, size+1)
	if err != nil {
		return nil, err
	}
	result := &HistoryPage{Size: size}
	if len(msgs) > size {
		msgs = msgs[:size]
		result.HasMore = true
		next := msgs[len(msgs)-1].ID
		result.NextCursor = &next
	}
	result.Messages = nonNil(msgs)
	return result, nil
}

// Iterate walks a room's messages in ascending id order, fetching pageSize at a time.
// Passing the Token of an earlier iterator resumes after the last message it returned.
func (uc *MessageUseCase) Iterate(roomID, afterID int64, pageSize int) *MessageIterator {
	if pageSize <= 0 {
		pageSize = MaxHistorySize
	}
	return &MessageIterator{
		repo:     uc.messageRepo,
		roomID:   roomID,
		lastID:   afterID,
		pageSize: pageSize,
	}
}

type MessageIterator struct {
	repo     repository.MessageRepository
	roomID   int64
	lastID   int64
	pageSize int

	buf     []*entity.Message
	current *entity.Message
	done    bool
	err     error
}

func (it *MessageIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if len(it.buf) == 0 {
		if it.done {
			return false
		}
		page, err := it.repo.ListAfter(ctx, it.roomID, it.lastID, it.pageSize)
		if err != nil {
			it.err = err
			return false
		}
		if len(page) < it.pageSize {
			it.done = true
		}
		if len(page) == 0 {
			return false
		}
		it.buf = page
	}

	it.current, it.buf = it.buf[0], it.buf[1:]
	it.lastID = it.current.ID
	return true
}

func (it *MessageIterator) Message() *entity.Message { return it.current }

func (it *MessageIterator) Err() error { return it.err }

// Token is the id of the last message returned.
func (it *MessageIterator) Token() int64 { return it.lastID }

func nonNil(msgs []*entity.Message) []*entity.Message {
	if msgs == nil {
		return []*entity.Message{}
	}
	return msgs
}
