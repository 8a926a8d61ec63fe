package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradezone/internal/domain/entity"
	"tradezone/pkg/errors"
)

type memoryBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	fail    error
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *memoryBlobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *memoryBlobs) get(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	return data, ok
}

func TestArchiveWritesTheWholeHistoryInOrder(t *testing.T) {
	f := newFixture()
	n := f.negotiation()
	ctx := context.Background()

	for _, line := range []string{"hi", "is it still available?", "yes"} {
		sender := buyerID
		if line == "yes" {
			sender = sellerID
		}
		_, err := f.messageUC.Append(ctx, n.Room.ID, sender, line)
		require.NoError(t, err)
	}
	_, err := f.tradeUC.RequestComplete(ctx, n.Trade.ID, sellerID)
	require.NoError(t, err)
	trade, err := f.tradeUC.ApproveComplete(ctx, n.Trade.ID, buyerID)
	require.NoError(t, err)

	blobs := newMemoryBlobs()
	archiver := NewTranscriptArchiver(f.messageUC, blobs, 1)
	archiver.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, archiver.Archive(ctx, trade))

	key := TranscriptKey(n.Room.ID, n.Trade.ID)
	data, ok := blobs.get(key)
	require.True(t, ok)
	assert.Equal(t, "application/json", blobs.types[key])

	var got Transcript
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, entity.TradeStatusCompleted, got.Trade.Status)
	require.Len(t, got.Messages, 5)
	for i := 1; i < len(got.Messages); i++ {
		assert.Less(t, got.Messages[i-1].ID, got.Messages[i].ID)
	}
	assert.Equal(t, "hi", got.Messages[0].Content)
	assert.True(t, got.Messages[4].IsSystem())
	assert.True(t, got.ArchivedAt.Equal(archiver.now()))
}

func TestArchiveSurfacesStorageErrors(t *testing.T) {
	f := newFixture()
	n := f.negotiation()
	blobs := newMemoryBlobs()
	blobs.fail = errors.Internal("bucket unavailable", nil)

	err := NewTranscriptArchiver(f.messageUC, blobs, 1).Archive(context.Background(), n.Trade)
	assert.True(t, errors.Is(err, errors.CodeInternal))
}

func TestArchiverRunDrainsTheQueue(t *testing.T) {
	f := newFixture()
	n := f.negotiation()
	blobs := newMemoryBlobs()
	archiver := NewTranscriptArchiver(f.messageUC, blobs, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- archiver.Run(ctx) }()

	archiver.Enqueue(n.Trade)
	assert.Eventually(t, func() bool {
		_, ok := blobs.get(TranscriptKey(n.Room.ID, n.Trade.ID))
		return ok
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("archiver did not stop")
	}
}

func TestEnqueueNeverBlocks(t *testing.T) {
	f := newFixture()
	n := f.negotiation()
	archiver := NewTranscriptArchiver(f.messageUC, newMemoryBlobs(), 1)

	archiver.Enqueue(n.Trade)
	archiver.Enqueue(n.Trade)
	assert.Len(t, archiver.queue, 1)
}
