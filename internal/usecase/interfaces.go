package usecase

import (
	"context"
	"time"

	"tradezone/internal/domain/entity"
)

// Broadcaster fans payloads out to topic subscribers.
type Broadcaster interface {
	Publish(ctx context.Context, topic string, payload interface{})
	// PublishAfterCommit holds the payload until the transaction in ctx commits.
	PublishAfterCommit(ctx context.Context, topic string, payload interface{})
}

// BlobWriter persists archived transcripts.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Archiver accepts trades that reached a terminal state.
type Archiver interface {
	Enqueue(trade *entity.Trade)
}

type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}
