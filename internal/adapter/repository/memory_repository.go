package repository

import (
	"context"
	"sort"
	"time"

	"tradezone/internal/domain/entity"
	"tradezone/internal/domain/repository"
	"tradezone/pkg/errors"
)

type memoryRoomRepository struct {
	s *MemoryStore
}

func NewMemoryRoomRepository(s *MemoryStore) repository.RoomRepository {
	return &memoryRoomRepository{s: s}
}

func (r *memoryRoomRepository) Create(ctx context.Context, room *entity.Room) error {
	defer r.s.lock(ctx)()
	d := &r.s.data

	key := room.Key()
	if _, exists := d.roomKeys[key]; exists {
		return errors.DuplicateKey("room "+key, nil)
	}
	d.nextRoomID++
	room.ID = d.nextRoomID
	d.rooms[room.ID] = *room
	d.roomKeys[key] = room.ID
	return nil
}

func (r *memoryRoomRepository) GetByID(ctx context.Context, id int64) (*entity.Room, error) {
	defer r.s.lock(ctx)()

	room, ok := r.s.data.rooms[id]
	if !ok {
		return nil, errors.NotFound("Room", nil)
	}
	return &room, nil
}

func (r *memoryRoomRepository) FindByPair(ctx context.Context, listingID, a, b int64) (*entity.Room, error) {
	defer r.s.lock(ctx)()

	id, ok := r.s.data.roomKeys[entity.RoomKey(listingID, a, b)]
	if !ok {
		return nil, errors.NotFound("Room", nil)
	}
	room := r.s.data.rooms[id]
	return &room, nil
}

func (r *memoryRoomRepository) ListByMember(ctx context.Context, memberID int64) ([]*entity.Room, error) {
	defer r.s.lock(ctx)()

	var rooms []*entity.Room
	for _, room := range r.s.data.rooms {
		if room.IsParticipant(memberID) {
			room := room
			rooms = append(rooms, &room)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (r *memoryRoomRepository) RecordMessage(ctx context.Context, roomID int64, at time.Time, unreadSide entity.Side) error {
	defer r.s.lock(ctx)()

	room, ok := r.s.data.rooms[roomID]
	if !ok {
		return errors.NotFound("Room", nil)
	}
	room.LastMessageAt = &at
	switch unreadSide {
	case entity.SideA:
		room.UnreadA++
	case entity.SideB:
		room.UnreadB++
	}
	r.s.data.rooms[roomID] = room
	return nil
}

func (r *memoryRoomRepository) ClearUnread(ctx context.Context, roomID int64, side entity.Side) error {
	defer r.s.lock(ctx)()

	room, ok := r.s.data.rooms[roomID]
	if !ok {
		return errors.NotFound("Room", nil)
	}
	if side == entity.SideA {
		room.UnreadA = 0
	} else {
		room.UnreadB = 0
	}
	r.s.data.rooms[roomID] = room
	return nil
}

type memoryMessageRepository struct {
	s *MemoryStore
}

func NewMemoryMessageRepository(s *MemoryStore) repository.MessageRepository {
	return &memoryMessageRepository{s: s}
}

func (r *memoryMessageRepository) Create(ctx context.Context, msg *entity.Message) error {
	defer r.s.lock(ctx)()
	d := &r.s.data

	if _, ok := d.rooms[msg.RoomID]; !ok {
		return errors.NotFound("Room", nil)
	}
	d.nextMessageID++
	msg.ID = d.nextMessageID

	existing := d.messages[msg.RoomID]
	next := make([]entity.Message, len(existing), len(existing)+1)
	copy(next, existing)
	d.messages[msg.RoomID] = append(next, cloneMessage(*msg))
	return nil
}

func (r *memoryMessageRepository) ListBefore(ctx context.Context, roomID, beforeID int64, limit int) ([]*entity.Message, error) {
	defer r.s.lock(ctx)()

	msgs := r.s.data.messages[roomID]
	var out []*entity.Message
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if beforeID > 0 && msgs[i].ID >= beforeID {
			continue
		}
		m := cloneMessage(msgs[i])
		out = append(out, &m)
	}
	return out, nil
}

func (r *memoryMessageRepository) ListAfter(ctx context.Context, roomID, afterID int64, limit int) ([]*entity.Message, error) {
	defer r.s.lock(ctx)()

	msgs := r.s.data.messages[roomID]
	start := sort.Search(len(msgs), func(i int) bool { return msgs[i].ID > afterID })
	var out []*entity.Message
	for i := start; i < len(msgs) && len(out) < limit; i++ {
		m := cloneMessage(msgs[i])
		out = append(out, &m)
	}
	return out, nil
}

func (r *memoryMessageRepository) ListPage(ctx context.Context, roomID int64, limit, offset int) ([]*entity.Message, int64, error) {
	defer r.s.lock(ctx)()

	msgs := r.s.data.messages[roomID]
	total := int64(len(msgs))
	var out []*entity.Message
	for i := len(msgs) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		m := cloneMessage(msgs[i])
		out = append(out, &m)
	}
	return out, total, nil
}

func (r *memoryMessageRepository) Latest(ctx context.Context, roomID int64) (*entity.Message, error) {
	defer r.s.lock(ctx)()

	msgs := r.s.data.messages[roomID]
	if len(msgs) == 0 {
		return nil, errors.NotFound("Message", nil)
	}
	m := cloneMessage(msgs[len(msgs)-1])
	return &m, nil
}

func (r *memoryMessageRepository) MarkAllRead(ctx context.Context, roomID int64, side entity.Side) (int64, error) {
	defer r.s.lock(ctx)()

	msgs := r.s.data.messages[roomID]
	var changed int64
	for _, m := range msgs {
		if !m.IsReadBy(side) {
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}

	next := make([]entity.Message, len(msgs))
	copy(next, msgs)
	for i := range next {
		next[i].MarkReadBy(side)
	}
	r.s.data.messages[roomID] = next
	return changed, nil
}

func cloneMessage(m entity.Message) entity.Message {
	if m.SenderID != nil {
		sender := *m.SenderID
		m.SenderID = &sender
	}
	return m
}

type memoryTradeRepository struct {
	s *MemoryStore
}

func NewMemoryTradeRepository(s *MemoryStore) repository.TradeRepository {
	return &memoryTradeRepository{s: s}
}

func (r *memoryTradeRepository) Create(ctx context.Context, trade *entity.Trade) error {
	defer r.s.lock(ctx)()
	d := &r.s.data

	if _, exists := d.tradeRooms[trade.RoomID]; exists {
		return errors.DuplicateKey("trade for room", nil)
	}
	d.nextTradeID++
	trade.ID = d.nextTradeID
	trade.Version = 1
	d.trades[trade.ID] = *trade.Clone()
	d.tradeRooms[trade.RoomID] = trade.ID
	return nil
}

func (r *memoryTradeRepository) GetByID(ctx context.Context, id int64) (*entity.Trade, error) {
	defer r.s.lock(ctx)()

	trade, ok := r.s.data.trades[id]
	if !ok {
		return nil, errors.NotFound("Trade", nil)
	}
	return trade.Clone(), nil
}

// GetByIDForUpdate reads under the store lock, which already serializes every writer.
func (r *memoryTradeRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entity.Trade, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryTradeRepository) GetByRoomID(ctx context.Context, roomID int64) (*entity.Trade, error) {
	defer r.s.lock(ctx)()

	id, ok := r.s.data.tradeRooms[roomID]
	if !ok {
		return nil, errors.NotFound("Trade", nil)
	}
	trade := r.s.data.trades[id]
	return trade.Clone(), nil
}

func (r *memoryTradeRepository) Update(ctx context.Context, trade *entity.Trade) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.data.trades[trade.ID]
	if !ok {
		return errors.NotFound("Trade", nil)
	}
	if stored.Version != trade.Version {
		return errors.ConcurrentModification("trade", trade.ID)
	}
	trade.Version++
	r.s.data.trades[trade.ID] = *trade.Clone()
	return nil
}

func (r *memoryTradeRepository) ExistsParticipantInRoom(ctx context.Context, roomID, memberID int64) (bool, error) {
	defer r.s.lock(ctx)()

	id, ok := r.s.data.tradeRooms[roomID]
	if !ok {
		return false, nil
	}
	trade := r.s.data.trades[id]
	return trade.IsParticipant(memberID), nil
}

func (r *memoryTradeRepository) ExistsParticipantInTrade(ctx context.Context, tradeID, memberID int64) (bool, error) {
	defer r.s.lock(ctx)()

	trade, ok := r.s.data.trades[tradeID]
	return ok && trade.IsParticipant(memberID), nil
}

type MemoryDirectory struct {
	s *MemoryStore
}

// NewMemoryDirectory serves both the listing catalog and the member directory.
func NewMemoryDirectory(s *MemoryStore) *MemoryDirectory {
	return &MemoryDirectory{s: s}
}

func (r *MemoryDirectory) GetListing(ctx context.Context, id int64) (*entity.Listing, error) {
	defer r.s.lock(ctx)()

	listing, ok := r.s.data.listings[id]
	if !ok {
		return nil, errors.NotFound("Listing", nil)
	}
	return &listing, nil
}

func (r *MemoryDirectory) GetMember(ctx context.Context, id int64) (*entity.Member, error) {
	defer r.s.lock(ctx)()

	member, ok := r.s.data.members[id]
	if !ok {
		return nil, errors.NotFound("Member", nil)
	}
	return &member, nil
}

func (r *MemoryDirectory) GetMemberByExternalID(ctx context.Context, externalID string) (*entity.Member, error) {
	defer r.s.lock(ctx)()

	for _, member := range r.s.data.members {
		if member.ExternalID == externalID {
			member := member
			return &member, nil
		}
	}
	return nil, errors.NotFound("Member", nil)
}
