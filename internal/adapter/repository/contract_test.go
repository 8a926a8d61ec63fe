package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradezone/internal/domain/entity"
	"tradezone/internal/domain/repository"
	"tradezone/internal/infrastructure/database"
	"tradezone/pkg/config"
	"tradezone/pkg/errors"
)

type backend struct {
	tx       repository.Transactor
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	trades   repository.TradeRepository
}

func memoryBackend(t *testing.T) backend {
	s := NewMemoryStore()
	return backend{
		tx:       s,
		rooms:    NewMemoryRoomRepository(s),
		messages: NewMemoryMessageRepository(s),
		trades:   NewMemoryTradeRepository(s),
	}
}

func sqliteBackend(t *testing.T) backend {
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, Models()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return backend{
		tx:       NewGormTransactor(db),
		rooms:    NewGormRoomRepository(db),
		messages: NewGormMessageRepository(db),
		trades:   NewGormTradeRepository(db),
	}
}

func forEachBackend(t *testing.T, run func(t *testing.T, b backend)) {
	for name, open := range map[string]func(*testing.T) backend{
		"memory": memoryBackend,
		"sqlite": sqliteBackend,
	} {
		t.Run(name, func(t *testing.T) { run(t, open(t)) })
	}
}

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newRoom(t *testing.T, b backend, listingID, u1, u2 int64) *entity.Room {
	t.Helper()
	room, err := entity.NewRoom(listingID, u1, u2, epoch)
	require.NoError(t, err)
	require.NoError(t, b.rooms.Create(context.Background(), room))
	return room
}

func TestRoomRepositoryContract(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		room := newRoom(t, b, 1, 20, 10)
		assert.Positive(t, room.ID)
		assert.Equal(t, int64(10), room.UserAID)

		dup, _ := entity.NewRoom(1, 10, 20, epoch)
		err := b.rooms.Create(ctx, dup)
		assert.True(t, errors.Is(err, errors.CodeDuplicateKey), "got %v", err)

		found, err := b.rooms.FindByPair(ctx, 1, 10, 20)
		require.NoError(t, err)
		assert.Equal(t, room.ID, found.ID)

		_, err = b.rooms.FindByPair(ctx, 2, 10, 20)
		assert.True(t, errors.Is(err, errors.CodeNotFound))
		_, err = b.rooms.GetByID(ctx, 999)
		assert.True(t, errors.Is(err, errors.CodeNotFound))

		other := newRoom(t, b, 2, 10, 30)
		mine, err := b.rooms.ListByMember(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, mine, 2)
		theirs, err := b.rooms.ListByMember(ctx, 30)
		require.NoError(t, err)
		require.Len(t, theirs, 1)
		assert.Equal(t, other.ID, theirs[0].ID)

		at := epoch.Add(time.Minute)
		require.NoError(t, b.rooms.RecordMessage(ctx, room.ID, at, entity.SideB))
		require.NoError(t, b.rooms.RecordMessage(ctx, room.ID, at, entity.SideB))
		require.NoError(t, b.rooms.RecordMessage(ctx, room.ID, at.Add(time.Second), ""))
		got, err := b.rooms.GetByID(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.UnreadA)
		assert.Equal(t, 2, got.UnreadB)
		require.NotNil(t, got.LastMessageAt)
		assert.True(t, got.LastMessageAt.Equal(at.Add(time.Second)))

		require.NoError(t, b.rooms.ClearUnread(ctx, room.ID, entity.SideB))
		got, err = b.rooms.GetByID(ctx, room.ID)
		require.NoError(t, err)
		assert.Zero(t, got.UnreadB)
	})
}

func TestMessageRepositoryContract(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		room := newRoom(t, b, 1, 10, 20)

		var ids []int64
		for i := 0; i < 5; i++ {
			msg, err := entity.NewTextMessage(room.ID, 10, entity.SideA, "line", epoch.Add(time.Duration(i)*time.Second))
			require.NoError(t, err)
			require.NoError(t, b.messages.Create(ctx, msg))
			if len(ids) > 0 {
				assert.Greater(t, msg.ID, ids[len(ids)-1])
			}
			ids = append(ids, msg.ID)
		}

		orphan, _ := entity.NewTextMessage(999, 10, entity.SideA, "nobody home", epoch)
		if _, ok := b.tx.(*MemoryStore); ok {
			assert.True(t, errors.Is(b.messages.Create(ctx, orphan), errors.CodeNotFound))
		}

		newest, err := b.messages.ListBefore(ctx, room.ID, 0, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{ids[4], ids[3]}, idsOf(newest))

		older, err := b.messages.ListBefore(ctx, room.ID, ids[3], 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, idsOf(older))

		after, err := b.messages.ListAfter(ctx, room.ID, ids[1], 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{ids[2], ids[3]}, idsOf(after))

		page, total, err := b.messages.ListPage(ctx, room.ID, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Equal(t, []int64{ids[2], ids[1]}, idsOf(page))

		latest, err := b.messages.Latest(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, ids[4], latest.ID)

		changed, err := b.messages.MarkAllRead(ctx, room.ID, entity.SideB)
		require.NoError(t, err)
		assert.Equal(t, int64(5), changed)
		changed, err = b.messages.MarkAllRead(ctx, room.ID, entity.SideB)
		require.NoError(t, err)
		assert.Zero(t, changed)
		changed, err = b.messages.MarkAllRead(ctx, room.ID, entity.SideA)
		require.NoError(t, err)
		assert.Zero(t, changed, "the sender's side starts read")

		empty := newRoom(t, b, 2, 10, 20)
		_, err = b.messages.Latest(ctx, empty.ID)
		assert.True(t, errors.Is(err, errors.CodeNotFound))
	})
}

func TestTradeRepositoryContract(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		room := newRoom(t, b, 1, 10, 20)

		trade, err := entity.NewTrade(room.ID, 1, 10, 20, epoch)
		require.NoError(t, err)
		require.NoError(t, b.trades.Create(ctx, trade))
		assert.Positive(t, trade.ID)
		assert.Equal(t, int64(1), trade.Version)

		again, _ := entity.NewTrade(room.ID, 1, 10, 20, epoch)
		assert.True(t, errors.Is(b.trades.Create(ctx, again), errors.CodeDuplicateKey))

		byRoom, err := b.trades.GetByRoomID(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, trade.ID, byRoom.ID)

		stale, err := b.trades.GetByID(ctx, trade.ID)
		require.NoError(t, err)

		require.NoError(t, trade.RequestComplete(10, epoch.Add(time.Minute)))
		require.NoError(t, b.trades.Update(ctx, trade))
		assert.Equal(t, int64(2), trade.Version)

		require.NoError(t, stale.RequestCancel(20, "changed my mind", epoch.Add(time.Minute)))
		err = b.trades.Update(ctx, stale)
		assert.True(t, errors.Is(err, errors.CodeConcurrentModification), "got %v", err)

		stored, err := b.trades.GetByIDForUpdate(ctx, trade.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.TradeStatusCompleteRequested, stored.Status)
		assert.Equal(t, entity.PendingComplete, stored.PendingType)
		require.NotNil(t, stored.RequestedBy)
		assert.Equal(t, int64(10), *stored.RequestedBy)
		assert.Empty(t, stored.CanceledReason)
		assert.Equal(t, int64(2), stored.Version)

		ghost := trade.Clone()
		ghost.ID = 999
		assert.True(t, errors.Is(b.trades.Update(ctx, ghost), errors.CodeNotFound))

		ok, err := b.trades.ExistsParticipantInRoom(ctx, room.ID, 20)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = b.trades.ExistsParticipantInRoom(ctx, room.ID, 30)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = b.trades.ExistsParticipantInTrade(ctx, trade.ID, 10)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = b.trades.ExistsParticipantInTrade(ctx, 999, 10)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestTransactionsRollBackAndDeferHooks(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		var fired int

		err := b.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			room, _ := entity.NewRoom(1, 10, 20, epoch)
			if err := b.rooms.Create(ctx, room); err != nil {
				return err
			}
			repository.AfterCommit(ctx, func() { fired++ })
			return errors.Conflict("abort", nil)
		})
		assert.True(t, errors.Is(err, errors.CodeConflict))
		assert.Zero(t, fired)
		_, err = b.rooms.FindByPair(ctx, 1, 10, 20)
		assert.True(t, errors.Is(err, errors.CodeNotFound))

		err = b.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			return b.tx.WithinTransaction(ctx, func(ctx context.Context) error {
				room, _ := entity.NewRoom(1, 10, 20, epoch)
				if err := b.rooms.Create(ctx, room); err != nil {
					return err
				}
				repository.AfterCommit(ctx, func() { fired++ })
				assert.Zero(t, fired)
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, 1, fired)
		_, err = b.rooms.FindByPair(ctx, 1, 10, 20)
		assert.NoError(t, err)
	})
}

func TestPanicInsideTransactionRollsBackAndReleases(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		var fired int

		assert.PanicsWithValue(t, "boom", func() {
			_ = b.tx.WithinTransaction(ctx, func(ctx context.Context) error {
				room, _ := entity.NewRoom(1, 10, 20, epoch)
				require.NoError(t, b.rooms.Create(ctx, room))
				repository.AfterCommit(ctx, func() { fired++ })
				panic("boom")
			})
		})
		assert.Zero(t, fired)

		done := make(chan error, 1)
		go func() {
			done <- b.tx.WithinTransaction(ctx, func(ctx context.Context) error {
				_, err := b.rooms.FindByPair(ctx, 1, 10, 20)
				if !errors.Is(err, errors.CodeNotFound) {
					return errors.Internal("room survived the panic", err)
				}
				room, _ := entity.NewRoom(1, 10, 20, epoch)
				return b.rooms.Create(ctx, room)
			})
		}()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("store still held after a panicked transaction")
		}
	})
}

func TestConcurrentRoomCreationKeepsOneRoom(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		const racers = 10
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			dups    int
		)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				room, _ := entity.NewRoom(7, 10, 20, epoch)
				err := b.rooms.Create(ctx, room)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case errors.Is(err, errors.CodeDuplicateKey):
					dups++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, created)
		assert.Equal(t, racers-1, dups)
	})
}

func idsOf(msgs []*entity.Message) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
