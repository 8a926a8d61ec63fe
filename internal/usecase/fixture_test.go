package usecase

import (
	"context"
	"sync"
	"time"

	adapterrepo "tradezone/internal/adapter/repository"
	"tradezone/internal/domain/entity"
	"tradezone/internal/domain/repository"
)

const (
	listingID = int64(42)
	buyerID   = int64(5)
	sellerID  = int64(9)
	outsider  = int64(77)
)

type published struct {
	Topic   string
	Payload interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []published
}

func (b *recordingBroadcaster) Publish(ctx context.Context, topic string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{Topic: topic, Payload: payload})
}

func (b *recordingBroadcaster) PublishAfterCommit(ctx context.Context, topic string, payload interface{}) {
	repository.AfterCommit(ctx, func() { b.Publish(ctx, topic, payload) })
}

func (b *recordingBroadcaster) On(topic string) []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []interface{}
	for _, e := range b.events {
		if e.Topic == topic {
			out = append(out, e.Payload)
		}
	}
	return out
}

func (b *recordingBroadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

type recordingArchiver struct {
	mu     sync.Mutex
	trades []*entity.Trade
}

func (a *recordingArchiver) Enqueue(trade *entity.Trade) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trades = append(a.trades, trade)
}

func (a *recordingArchiver) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.trades)
}

type fixture struct {
	store    *adapterrepo.MemoryStore
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	trades   repository.TradeRepository
	dir      *adapterrepo.MemoryDirectory
	bus      *recordingBroadcaster
	archive  *recordingArchiver

	roomUC    *RoomUseCase
	messageUC *MessageUseCase
	tradeUC   *TradeApprovalUseCase
	subsUC    *SubscriptionUseCase
}

func newFixture() *fixture {
	store := adapterrepo.NewMemoryStore()
	store.SeedListing(entity.Listing{ID: listingID, SellerID: sellerID, Title: "Mechanical keyboard", Status: entity.ListingStatusActive})
	store.SeedListing(entity.Listing{ID: 43, SellerID: buyerID, Title: "Desk lamp", Status: entity.ListingStatusActive})
	store.SeedMember(entity.Member{ID: buyerID, DisplayName: "Alice"})
	store.SeedMember(entity.Member{ID: sellerID, DisplayName: "Bob"})
	store.SeedMember(entity.Member{ID: outsider, DisplayName: "Mallory"})

	f := &fixture{
		store:    store,
		rooms:    adapterrepo.NewMemoryRoomRepository(store),
		messages: adapterrepo.NewMemoryMessageRepository(store),
		trades:   adapterrepo.NewMemoryTradeRepository(store),
		dir:      adapterrepo.NewMemoryDirectory(store),
		bus:      &recordingBroadcaster{},
		archive:  &recordingArchiver{},
	}
	f.wire()
	return f
}

// wire rebuilds the usecases, so tests can swap a repository first.
func (f *fixture) wire() {
	f.roomUC = NewRoomUseCase(f.rooms, f.messages, f.trades, f.dir, f.dir)
	f.messageUC = NewMessageUseCase(f.store, f.rooms, f.messages, f.bus)
	f.tradeUC = NewTradeApprovalUseCase(f.store, f.trades, f.dir, f.messageUC, f.bus, f.archive)
	f.subsUC = NewSubscriptionUseCase(f.trades)
}

// negotiation opens the default room and trade between buyer and seller.
func (f *fixture) negotiation() *NegotiationResponse {
	n, err := f.roomUC.OpenNegotiation(context.Background(), buyerID, listingID)
	if err != nil {
		panic(err)
	}
	return n
}

// steppedClock returns strictly increasing times regardless of real time.
func steppedClock(start time.Time) Clock {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}
