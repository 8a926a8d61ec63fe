package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"

	"tradezone/internal/domain/entity"
	"tradezone/internal/domain/repository"
	"tradezone/pkg/errors"
)

// markReadBatch stays under the 500 writes Firestore allows per transaction.
const markReadBatch = 400

// Messages live in rooms/{roomId}/messages/{seq}. The sequence counter is the room document's
// messageSeq field, so ids are monotonic per room.
type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) messages(roomID int64) *firestore.CollectionRef {
	return r.client.Collection(roomsCollection).Doc(docID(roomID)).Collection(messagesCollection)
}

func (r *firestoreMessageRepository) Create(ctx context.Context, msg *entity.Message) error {
	roomRef := r.client.Collection(roomsCollection).Doc(docID(msg.RoomID))

	return runTx(ctx, r.client, func(tx *firestore.Transaction) error {
		snap, err := tx.Get(roomRef)
		if err != nil {
			if isNotFound(err) {
				return errors.NotFound("Room", err)
			}
			return errors.Internal("Failed to read room sequence", err)
		}

		var seq int64
		if v, err := snap.DataAt("messageSeq"); err == nil {
			seq, _ = v.(int64)
		}
		seq++
		msg.ID = seq

		if err := tx.Update(roomRef, []firestore.Update{{Path: "messageSeq", Value: seq}}); err != nil {
			return errors.Internal("Failed to advance room sequence", err)
		}
		if err := tx.Create(r.messages(msg.RoomID).Doc(seqDocID(seq)), msg); err != nil {
			return errors.Internal("Failed to create message", err)
		}
		return nil
	})
}

func (r *firestoreMessageRepository) ListBefore(ctx context.Context, roomID, beforeID int64, limit int) ([]*entity.Message, error) {
	q := r.messages(roomID).OrderBy("id", firestore.Desc)
	if beforeID > 0 {
		q = q.Where("id", "<", beforeID)
	}
	return collect(queryDocs(ctx, q.Limit(limit)), decodeMessage)
}

func (r *firestoreMessageRepository) ListAfter(ctx context.Context, roomID, afterID int64, limit int) ([]*entity.Message, error) {
	q := r.messages(roomID).Where("id", ">", afterID).OrderBy("id", firestore.Asc).Limit(limit)
	return collect(queryDocs(ctx, q), decodeMessage)
}

func (r *firestoreMessageRepository) ListPage(ctx context.Context, roomID int64, limit, offset int) ([]*entity.Message, int64, error) {
	res, err := r.messages(roomID).NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return nil, 0, errors.Internal("Failed to count messages for room", err)
	}
	var total int64
	if v, ok := res["total"].(*firestorepb.Value); ok {
		total = v.GetIntegerValue()
	}

	q := r.messages(roomID).OrderBy("id", firestore.Desc).Offset(offset).Limit(limit)
	msgs, err := collect(queryDocs(ctx, q), decodeMessage)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

func (r *firestoreMessageRepository) Latest(ctx context.Context, roomID int64) (*entity.Message, error) {
	msgs, err := r.ListBefore(ctx, roomID, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, errors.NotFound("Message", nil)
	}
	return msgs[0], nil
}

// MarkAllRead joins an outer transaction in one pass; on its own it loops in batches.
func (r *firestoreMessageRepository) MarkAllRead(ctx context.Context, roomID int64, side entity.Side) (int64, error) {
	field := "readByB"
	if side == entity.SideA {
		field = "readByA"
	}
	q := r.messages(roomID).Where(field, "==", false)

	var total int64
	for {
		var changed int64
		err := runTx(ctx, r.client, func(tx *firestore.Transaction) error {
			docs, err := tx.Documents(q.Limit(markReadBatch)).GetAll()
			if err != nil {
				return errors.Internal("Failed to query unread messages", err)
			}
			changed = int64(len(docs))
			for _, doc := range docs {
				if err := tx.Update(doc.Ref, []firestore.Update{{Path: field, Value: true}}); err != nil {
					return errors.Internal("Failed to mark message read", err)
				}
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		total += changed
		if txFrom(ctx) != nil || changed < markReadBatch {
			return total, nil
		}
	}
}

func decodeMessage(doc *firestore.DocumentSnapshot) (*entity.Message, error) {
	var msg entity.Message
	if err := doc.DataTo(&msg); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return &msg, nil
}
