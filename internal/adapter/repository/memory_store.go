package repository

import (
	"context"
	"sync"

	"tradezone/internal/domain/entity"
	"tradezone/internal/domain/repository"
)

type memoryData struct {
	rooms      map[int64]entity.Room
	roomKeys   map[string]int64
	messages   map[int64][]entity.Message
	trades     map[int64]entity.Trade
	tradeRooms map[int64]int64
	listings   map[int64]entity.Listing
	members    map[int64]entity.Member

	nextRoomID    int64
	nextMessageID int64
	nextTradeID   int64
}

func newMemoryData() memoryData {
	return memoryData{
		rooms:      make(map[int64]entity.Room),
		roomKeys:   make(map[string]int64),
		messages:   make(map[int64][]entity.Message),
		trades:     make(map[int64]entity.Trade),
		tradeRooms: make(map[int64]int64),
		listings:   make(map[int64]entity.Listing),
		members:    make(map[int64]entity.Member),
	}
}

// snapshot copies the maps. Message slices are shared and must be replaced, not mutated in place.
func (d memoryData) snapshot() memoryData {
	c := d
	c.rooms = copyMap(d.rooms)
	c.roomKeys = copyMap(d.roomKeys)
	c.messages = copyMap(d.messages)
	c.trades = copyMap(d.trades)
	c.tradeRooms = copyMap(d.tradeRooms)
	c.listings = copyMap(d.listings)
	c.members = copyMap(d.members)
	return c
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// MemoryStore backs every repository port with process memory.
// A transaction holds the store lock for its whole duration and restores a snapshot on error.
// The single lock makes it a development and test backend only.
type MemoryStore struct {
	mu   sync.Mutex
	data memoryData
}

type memoryTxKey struct {
	store *MemoryStore
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemoryData()}
}

// WithinTransaction restores the snapshot and releases the lock whenever fn fails or panics.
// Hooks run after the lock is released.
func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	hooks, err := s.runLocked(ctx, fn)
	if err != nil {
		return err
	}
	hooks.Run()
	return nil
}

func (s *MemoryStore) runLocked(ctx context.Context, fn func(ctx context.Context) error) (*repository.TxHooks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.data.snapshot()
	committed := false
	defer func() {
		if !committed {
			s.data = saved
		}
	}()

	txCtx := context.WithValue(ctx, memoryTxKey{s}, true)
	txCtx, hooks := repository.BeginHooks(txCtx)
	if err := fn(txCtx); err != nil {
		return nil, err
	}
	committed = true
	return hooks, nil
}

func (s *MemoryStore) inTx(ctx context.Context) bool {
	held, _ := ctx.Value(memoryTxKey{s}).(bool)
	return held
}

// lock takes the store lock unless ctx already holds it through a transaction.
func (s *MemoryStore) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) SeedListing(l entity.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.listings[l.ID] = l
}

func (s *MemoryStore) SeedMember(m entity.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.members[m.ID] = m
}

// RoomCount is used by tests asserting room uniqueness.
func (s *MemoryStore) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.rooms)
}
