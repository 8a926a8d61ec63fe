package repository

import (
	"context"
	stderrors "errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tradezone/internal/domain/repository"
	"tradezone/pkg/errors"
)

const (
	roomsCollection      = "rooms"
	roomKeysCollection   = "room_keys"
	messagesCollection   = "messages"
	tradesCollection     = "trades"
	tradeRoomsCollection = "trade_rooms"
	countersCollection   = "counters"
	listingsCollection   = "listings"
	membersCollection    = "members"
)

type firestoreTxKey struct{}

// FirestoreTransactor maps WithinTransaction onto RunTransaction.
// Firestore retries contended transactions, so after-commit hooks are collected per attempt
// and only the committed attempt's hooks run.
type FirestoreTransactor struct {
	client *firestore.Client
}

func NewFirestoreTransactor(client *firestore.Client) *FirestoreTransactor {
	return &FirestoreTransactor{client: client}
}

func (t *FirestoreTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	var hooks *repository.TxHooks
	err := t.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		txCtx := context.WithValue(ctx, firestoreTxKey{}, tx)
		txCtx, hooks = repository.BeginHooks(txCtx)
		return fn(txCtx)
	})
	if err != nil {
		return translateFirestoreError(err)
	}
	hooks.Run()
	return nil
}

func txFrom(ctx context.Context) *firestore.Transaction {
	tx, _ := ctx.Value(firestoreTxKey{}).(*firestore.Transaction)
	return tx
}

// runTx joins the transaction in ctx or starts one for a multi-document write.
// Within fn every read must happen before the first write.
func runTx(ctx context.Context, client *firestore.Client, fn func(tx *firestore.Transaction) error) error {
	if tx := txFrom(ctx); tx != nil {
		return fn(tx)
	}
	err := client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(tx)
	})
	return translateFirestoreError(err)
}

func getDoc(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	if tx := txFrom(ctx); tx != nil {
		return tx.Get(ref)
	}
	return ref.Get(ctx)
}

func queryDocs(ctx context.Context, q firestore.Query) *firestore.DocumentIterator {
	if tx := txFrom(ctx); tx != nil {
		return tx.Documents(q)
	}
	return q.Documents(ctx)
}

func updateDoc(ctx context.Context, ref *firestore.DocumentRef, updates []firestore.Update) error {
	if tx := txFrom(ctx); tx != nil {
		return tx.Update(ref, updates)
	}
	_, err := ref.Update(ctx, updates)
	return err
}

// nextID reserves the next numeric id of kind. It reads, so call it before any write.
func nextID(tx *firestore.Transaction, client *firestore.Client, kind string) (int64, error) {
	ref := client.Collection(countersCollection).Doc(kind)
	var current int64
	snap, err := tx.Get(ref)
	switch {
	case err == nil:
		if v, err := snap.DataAt("value"); err == nil {
			current, _ = v.(int64)
		}
	case status.Code(err) != codes.NotFound:
		return 0, errors.Internal("Failed to read "+kind+" counter", err)
	}

	next := current + 1
	if err := tx.Set(ref, map[string]interface{}{"value": next}); err != nil {
		return 0, errors.Internal("Failed to reserve "+kind+" id", err)
	}
	return next, nil
}

func docID(id int64) string {
	return fmt.Sprintf("%d", id)
}

// seqDocID zero-pads so document ids sort the same way as the sequence.
func seqDocID(seq int64) string {
	return fmt.Sprintf("%020d", seq)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func translateFirestoreError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	switch status.Code(err) {
	case codes.AlreadyExists:
		return errors.DuplicateKey("document", err)
	case codes.Aborted:
		return errors.Conflict("Transaction aborted by contention", err)
	}
	return errors.Internal("Firestore transaction failed", err)
}

// collect drains iter, decoding each document with decode.
func collect[T any](iter *firestore.DocumentIterator, decode func(*firestore.DocumentSnapshot) (*T, error)) ([]*T, error) {
	defer iter.Stop()
	var out []*T
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate documents", err)
		}
		v, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
