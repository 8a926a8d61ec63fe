package repository

import (
	"context"

	"cloud.google.com/go/firestore"

	"tradezone/internal/domain/entity"
	"tradezone/internal/domain/repository"
	"tradezone/pkg/errors"
)

// tradeDoc adds the participants array used by the subscription existence queries.
type tradeDoc struct {
	entity.Trade
	Participants []int64 `firestore:"participants"`
}

func newTradeDoc(t *entity.Trade) *tradeDoc {
	return &tradeDoc{Trade: *t, Participants: []int64{t.BuyerID, t.SellerID}}
}

type firestoreTradeRepository struct {
	client *firestore.Client
}

func NewFirestoreTradeRepository(client *firestore.Client) repository.TradeRepository {
	return &firestoreTradeRepository{
		client: client,
	}
}

func (r *firestoreTradeRepository) ref(id int64) *firestore.DocumentRef {
	return r.client.Collection(tradesCollection).Doc(docID(id))
}

func (r *firestoreTradeRepository) Create(ctx context.Context, trade *entity.Trade) error {
	roomRef := r.client.Collection(tradeRoomsCollection).Doc(docID(trade.RoomID))

	return runTx(ctx, r.client, func(tx *firestore.Transaction) error {
		if _, err := tx.Get(roomRef); err == nil {
			return errors.DuplicateKey("trade for room", nil)
		} else if !isNotFound(err) {
			return errors.Internal("Failed to check trade room", err)
		}

		id, err := nextID(tx, r.client, tradesCollection)
		if err != nil {
			return err
		}
		trade.ID = id
		trade.Version = 1

		if err := tx.Create(roomRef, map[string]interface{}{"tradeId": id}); err != nil {
			return errors.Internal("Failed to reserve trade room", err)
		}
		if err := tx.Create(r.ref(id), newTradeDoc(trade)); err != nil {
			return errors.Internal("Failed to create trade", err)
		}
		return nil
	})
}

func (r *firestoreTradeRepository) GetByID(ctx context.Context, id int64) (*entity.Trade, error) {
	doc, err := getDoc(ctx, r.ref(id))
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("Trade", err)
		}
		return nil, errors.Internal("Failed to get trade", err)
	}
	return decodeTrade(doc)
}

// GetByIDForUpdate relies on transactional reads, which Firestore server SDKs lock until commit.
func (r *firestoreTradeRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entity.Trade, error) {
	if txFrom(ctx) == nil {
		return nil, errors.Internal("locked read requires a transaction", nil)
	}
	return r.GetByID(ctx, id)
}

func (r *firestoreTradeRepository) GetByRoomID(ctx context.Context, roomID int64) (*entity.Trade, error) {
	trades, err := collect(queryDocs(ctx, r.client.Collection(tradesCollection).Where("roomId", "==", roomID).Limit(1)), decodeTrade)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, errors.NotFound("Trade", nil)
	}
	return trades[0], nil
}

func (r *firestoreTradeRepository) Update(ctx context.Context, trade *entity.Trade) error {
	ref := r.ref(trade.ID)

	err := runTx(ctx, r.client, func(tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return errors.NotFound("Trade", err)
			}
			return errors.Internal("Failed to read trade version", err)
		}
		stored, _ := snap.DataAt("version")
		if v, _ := stored.(int64); v != trade.Version {
			return errors.ConcurrentModification("trade", trade.ID)
		}

		next := trade.Clone()
		next.Version++
		if err := tx.Set(ref, newTradeDoc(next)); err != nil {
			return errors.Internal("Failed to update trade", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	trade.Version++
	return nil
}

func (r *firestoreTradeRepository) ExistsParticipantInRoom(ctx context.Context, roomID, memberID int64) (bool, error) {
	q := r.client.Collection(tradesCollection).
		Where("roomId", "==", roomID).
		Where("participants", "array-contains", memberID).
		Limit(1)
	docs, err := queryDocs(ctx, q).GetAll()
	if err != nil {
		return false, errors.Internal("Failed to check room participants", err)
	}
	return len(docs) > 0, nil
}

func (r *firestoreTradeRepository) ExistsParticipantInTrade(ctx context.Context, tradeID, memberID int64) (bool, error) {
	trade, err := r.GetByID(ctx, tradeID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return trade.IsParticipant(memberID), nil
}

func decodeTrade(doc *firestore.DocumentSnapshot) (*entity.Trade, error) {
	var d tradeDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, errors.Internal("Failed to parse trade data", err)
	}
	return &d.Trade, nil
}
