package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tradezone/internal/domain/entity"
	"tradezone/pkg/logger"
)

const transcriptPageSize = 200

type Transcript struct {
	Trade      *entity.Trade     `json:"trade"`
	Messages   []*entity.Message `json:"messages"`
	ArchivedAt time.Time         `json:"archived_at"`
}

func TranscriptKey(roomID, tradeID int64) string {
	return fmt.Sprintf("transcripts/room-%d/trade-%d.json", roomID, tradeID)
}

// TranscriptArchiver writes the room history of finished trades to blob storage in the background.
type TranscriptArchiver struct {
	messages *MessageUseCase
	blobs    BlobWriter
	queue    chan *entity.Trade
	now      Clock
}

func NewTranscriptArchiver(messages *MessageUseCase, blobs BlobWriter, buffer int) *TranscriptArchiver {
	if buffer <= 0 {
		buffer = 64
	}
	return &TranscriptArchiver{
		messages: messages,
		blobs:    blobs,
		queue:    make(chan *entity.Trade, buffer),
		now:      utcNow,
	}
}

// Enqueue never blocks; when the queue is full the trade is skipped.
func (a *TranscriptArchiver) Enqueue(trade *entity.Trade) {
	select {
	case a.queue <- trade:
	default:
		logger.Warn("transcript queue full, skipping trade %d", trade.ID)
	}
}

// Run archives queued trades until ctx ends.
func (a *TranscriptArchiver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case trade := <-a.queue:
			if err := a.Archive(ctx, trade); err != nil {
				logger.Ctx(ctx).Error().Err(err).Int64(logger.FieldTradeID, trade.ID).Msg("failed to archive transcript")
			}
		}
	}
}

func (a *TranscriptArchiver) Archive(ctx context.Context, trade *entity.Trade) error {
	transcript := Transcript{
		Trade:      trade,
		Messages:   []*entity.Message{},
		ArchivedAt: a.now(),
	}

	it := a.messages.Iterate(trade.RoomID, 0, transcriptPageSize)
	for it.Next(ctx) {
		transcript.Messages = append(transcript.Messages, it.Message())
	}
	if err := it.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return err
	}
	key := TranscriptKey(trade.RoomID, trade.ID)
	if err := a.blobs.Put(ctx, key, data, "application/json"); err != nil {
		return err
	}

	logger.Ctx(ctx).Info().Int64(logger.FieldTradeID, trade.ID).Str("key", key).Int("messages", len(transcript.Messages)).Msg("transcript archived")
	return nil
}
