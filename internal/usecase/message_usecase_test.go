package usecase

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"tradezone/internal/domain/entity"
	"tradezone/pkg/errors"
)

func TestAppendBumpsOtherSideAndPublishesAfterCommit(t *testing.T) {
	f := newFixture()
	n := f.negotiation()
	room := n.Room
	topic := entity.ChatTopic(room.ID)

	var msg *entity.Message
	err := f.store.WithinTransaction(context.Background(), func(ctx context.Context) error {
		var err error
		msg, err = f.messageUC.Append(ctx, room.ID, buyerID, "  hello  ")
		if err != nil {
			return err
		}
		assert.Empty(t, f.bus.On(topic), "nothing is published before commit")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", msg.Content)
	assert.True(t, msg.ReadByA, "sender has read their own message")
	assert.False(t, msg.ReadByB)

	stored, err := f.rooms.GetByID(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.UnreadA)
	assert.Equal(t, 1, stored.UnreadB)
	require.NotNil(t, stored.LastMessageAt)

	events := f.bus.On(topic)
	require.Len(t, events, 1)
	event, ok := events[0].(entity.ChatMessageEvent)
	require.True(t, ok)
	assert.Equal(t, msg.ID, event.ID)
	assert.Equal(t, room.ID, event.RoomID)
	require.NotNil(t, event.SenderID)
	assert.Equal(t, buyerID, *event.SenderID)
	assert.Equal(t, entity.MessageTypeText, event.Type)
}

func TestAppendRolledBackIsNeverObserved(t *testing.T) {
	f := newFixture()
	room := f.negotiation().Room
	ctx := context.Background()

	boom := stderrors.New("downstream failure")
	err := f.store.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := f.messageUC.Append(ctx, room.ID, buyerID, "hello"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Zero(t, f.bus.Count())
	msgs, err := f.messages.ListBefore(ctx, room.ID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	stored, err := f.rooms.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.UnreadB)
	assert.Nil(t, stored.LastMessageAt)
}

func TestAppendRejections(t *testing.T) {
	f := newFixture()
	room := f.negotiation().Room
	ctx := context.Background()

	tests := []struct {
		name    string
		roomID  int64
		sender  int64
		content string
		code    string
	}{
		{"blank content", room.ID, buyerID, "   ", errors.CodeInvalidArgument},
		{"outsider", room.ID, outsider, "hi", errors.CodeForbidden},
		{"unknown room", 999, buyerID, "hi", errors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.messageUC.Append(ctx, tt.roomID, tt.sender, tt.content)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
	assert.Zero(t, f.bus.Count())
}

func TestAppendSystemLeavesUnreadAlone(t *testing.T) {
	f := newFixture()
	room := f.negotiation().Room
	ctx := context.Background()

	msg, err := f.messageUC.AppendSystem(ctx, room.ID, "[Notice] trade opened")
	require.NoError(t, err)
	assert.Nil(t, msg.SenderID)
	assert.Equal(t, entity.MessageTypeSystem, msg.Type)

	stored, err := f.rooms.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.UnreadA)
	assert.Zero(t, stored.UnreadB)
	assert.NotNil(t, stored.LastMessageAt)

	events := f.bus.On(entity.ChatTopic(room.ID))
	require.Len(t, events, 1)
	notice, ok := events[0].(entity.SystemNoticeEvent)
	require.True(t, ok)
	assert.Equal(t, entity.MessageTypeSystem, notice.Type)
	assert.Equal(t, "[Notice] trade opened", notice.Content)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newFixture()
	room := f.negotiation().Room
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.messageUC.Append(ctx, room.ID, buyerID, text)
		require.NoError(t, err)
	}
	_, err := f.messageUC.Append(ctx, room.ID, sellerID, "reply")
	require.NoError(t, err)

	changed, err := f.messageUC.MarkRead(ctx, room.ID, sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), changed)

	stored, err := f.rooms.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.UnreadB)
	assert.Equal(t, 1, stored.UnreadA, "the reader's counter only")

	before, err := f.messages.ListBefore(ctx, room.ID, 0, 10)
	require.NoError(t, err)

	changed, err = f.messageUC.MarkRead(ctx, room.ID, sellerID)
	require.NoError(t, err)
	assert.Zero(t, changed)

	after, err := f.messages.ListBefore(ctx, room.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	stored, err = f.rooms.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.UnreadB)

	_, err = f.messageUC.MarkRead(ctx, room.ID, outsider)
	assert.True(t, errors.Is(err, errors.CodeForbidden))
}

func TestHistoryCursorAndPages(t *testing.T) {
	f := newFixture()
	room := f.negotiation().Room
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		m, err := f.messageUC.Append(ctx, room.ID, buyerID, "m")
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	first, err := f.messageUC.History(ctx, room.ID, sellerID, HistoryQuery{Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[4], ids[3]}, messageIDs(first.Messages))
	assert.True(t, first.HasMore)
	require.NotNil(t, first.NextCursor)

	second, err := f.messageUC.History(ctx, room.ID, sellerID, HistoryQuery{BeforeID: *first.NextCursor, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[2], ids[1]}, messageIDs(second.Messages))

	last, err := f.messageUC.History(ctx, room.ID, sellerID, HistoryQuery{BeforeID: *second.NextCursor, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[0]}, messageIDs(last.Messages))
	assert.False(t, last.HasMore)
	assert.Nil(t, last.NextCursor)

	page, err := f.messageUC.History(ctx, room.ID, buyerID, HistoryQuery{Paged: true, Page: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[2], ids[1]}, messageIDs(page.Messages))
	assert.Equal(t, int64(5), page.Total)
	assert.True(t, page.HasMore)

	_, err = f.messageUC.History(ctx, room.ID, outsider, HistoryQuery{})
	assert.True(t, errors.Is(err, errors.CodeForbidden))
}

func TestMessageIDsFollowAppendOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture()
		room := f.negotiation().Room
		ctx := context.Background()

		// Wall clock runs backwards; ordering must still follow ids.
		clock := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		f.messageUC.now = func() time.Time {
			clock = clock.Add(-time.Minute)
			return clock
		}

		senders := rapid.SliceOfN(rapid.SampledFrom([]int64{buyerID, sellerID}), 1, 40).Draw(t, "senders")
		var appended []int64
		for _, sender := range senders {
			m, err := f.messageUC.Append(ctx, room.ID, sender, "x")
			if err != nil {
				t.Fatalf("append: %v", err)
			}
			if len(appended) > 0 && m.ID <= appended[len(appended)-1] {
				t.Fatalf("id %d not greater than %d", m.ID, appended[len(appended)-1])
			}
			appended = append(appended, m.ID)
		}

		pageSize := rapid.IntRange(1, 7).Draw(t, "pageSize")
		it := f.messageUC.Iterate(room.ID, 0, pageSize)
		var walked []int64
		for it.Next(ctx) {
			walked = append(walked, it.Message().ID)
		}
		if it.Err() != nil {
			t.Fatalf("iterate: %v", it.Err())
		}
		if len(walked) != len(appended) {
			t.Fatalf("walked %d messages, appended %d", len(walked), len(appended))
		}
		for i := range walked {
			if walked[i] != appended[i] {
				t.Fatalf("position %d: got %d want %d", i, walked[i], appended[i])
			}
		}
	})
}

func TestIteratorResumesFromToken(t *testing.T) {
	f := newFixture()
	room := f.negotiation().Room
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 6; i++ {
		m, err := f.messageUC.Append(ctx, room.ID, sellerID, "m")
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	it := f.messageUC.Iterate(room.ID, 0, 4)
	for i := 0; i < 3; i++ {
		require.True(t, it.Next(ctx))
	}
	token := it.Token()
	assert.Equal(t, ids[2], token)

	resumed := f.messageUC.Iterate(room.ID, token, 4)
	var rest []int64
	for resumed.Next(ctx) {
		rest = append(rest, resumed.Message().ID)
	}
	require.NoError(t, resumed.Err())
	assert.Equal(t, ids[3:], rest)
}

func messageIDs(msgs []*entity.Message) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
