package repository

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"

	"tradezone/internal/domain/entity"
	"tradezone/internal/domain/repository"
	"tradezone/pkg/errors"
)

// Rooms live in rooms/{id}. Uniqueness of (listing, a, b) is held by room_keys/{listing}_{a}_{b},
// which is read and created in the same transaction as the room.
type firestoreRoomRepository struct {
	client *firestore.Client
}

func NewFirestoreRoomRepository(client *firestore.Client) repository.RoomRepository {
	return &firestoreRoomRepository{
		client: client,
	}
}

func (r *firestoreRoomRepository) ref(id int64) *firestore.DocumentRef {
	return r.client.Collection(roomsCollection).Doc(docID(id))
}

func (r *firestoreRoomRepository) Create(ctx context.Context, room *entity.Room) error {
	keyRef := r.client.Collection(roomKeysCollection).Doc(room.Key())

	return runTx(ctx, r.client, func(tx *firestore.Transaction) error {
		if _, err := tx.Get(keyRef); err == nil {
			return errors.DuplicateKey("room "+room.Key(), nil)
		} else if !isNotFound(err) {
			return errors.Internal("Failed to check room key", err)
		}

		id, err := nextID(tx, r.client, roomsCollection)
		if err != nil {
			return err
		}
		room.ID = id

		if err := tx.Create(keyRef, map[string]interface{}{"roomId": id}); err != nil {
			return errors.Internal("Failed to create room key", err)
		}
		if err := tx.Create(r.ref(id), room); err != nil {
			return errors.Internal("Failed to create room", err)
		}
		return nil
	})
}

func (r *firestoreRoomRepository) GetByID(ctx context.Context, id int64) (*entity.Room, error) {
	doc, err := getDoc(ctx, r.ref(id))
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("Room", err)
		}
		return nil, errors.Internal("Failed to get room", err)
	}
	return decodeRoom(doc)
}

func (r *firestoreRoomRepository) FindByPair(ctx context.Context, listingID, a, b int64) (*entity.Room, error) {
	doc, err := getDoc(ctx, r.client.Collection(roomKeysCollection).Doc(entity.RoomKey(listingID, a, b)))
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("Room", err)
		}
		return nil, errors.Internal("Failed to get room key", err)
	}
	raw, err := doc.DataAt("roomId")
	if err != nil {
		return nil, errors.Internal("Room key has no room id", err)
	}
	id, _ := raw.(int64)
	return r.GetByID(ctx, id)
}

func (r *firestoreRoomRepository) ListByMember(ctx context.Context, memberID int64) ([]*entity.Room, error) {
	seen := make(map[int64]*entity.Room)
	for _, field := range []string{"userAId", "userBId"} {
		rooms, err := collect(queryDocs(ctx, r.client.Collection(roomsCollection).Where(field, "==", memberID)), decodeRoom)
		if err != nil {
			return nil, err
		}
		for _, room := range rooms {
			seen[room.ID] = room
		}
	}

	rooms := make([]*entity.Room, 0, len(seen))
	for _, room := range seen {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (r *firestoreRoomRepository) RecordMessage(ctx context.Context, roomID int64, at time.Time, unreadSide entity.Side) error {
	updates := []firestore.Update{{Path: "lastMessageAt", Value: at}}
	switch unreadSide {
	case entity.SideA:
		updates = append(updates, firestore.Update{Path: "unreadA", Value: firestore.Increment(1)})
	case entity.SideB:
		updates = append(updates, firestore.Update{Path: "unreadB", Value: firestore.Increment(1)})
	}

	if err := updateDoc(ctx, r.ref(roomID), updates); err != nil {
		if isNotFound(err) {
			return errors.NotFound("Room", err)
		}
		return errors.Internal("Failed to update room", err)
	}
	return nil
}

func (r *firestoreRoomRepository) ClearUnread(ctx context.Context, roomID int64, side entity.Side) error {
	path := "unreadB"
	if side == entity.SideA {
		path = "unreadA"
	}
	if err := updateDoc(ctx, r.ref(roomID), []firestore.Update{{Path: path, Value: 0}}); err != nil {
		return errors.Internal("Failed to clear unread counter", err)
	}
	return nil
}

func decodeRoom(doc *firestore.DocumentSnapshot) (*entity.Room, error) {
	var room entity.Room
	if err := doc.DataTo(&room); err != nil {
		return nil, errors.Internal("Failed to parse room data", err)
	}
	return &room, nil
}
