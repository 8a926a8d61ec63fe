package entity

import (
	"fmt"
	"time"

	apperrors "tradezone/pkg/errors"
)

type RoomStatus string

const (
	RoomStatusOpen   RoomStatus = "OPEN"
	RoomStatusClosed RoomStatus = "CLOSED"
)

// Side is a participant's normalized position in a room, not a business role.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

type Room struct {
	ID            int64      `json:"id" firestore:"id"`
	ListingID     int64      `json:"listing_id" firestore:"listingId"`
	UserAID       int64      `json:"user_a_id" firestore:"userAId"`
	UserBID       int64      `json:"user_b_id" firestore:"userBId"`
	Status        RoomStatus `json:"status" firestore:"status"`
	CreatedAt     time.Time  `json:"created_at" firestore:"createdAt"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty" firestore:"lastMessageAt"`
	UnreadA       int        `json:"unread_a" firestore:"unreadA"`
	UnreadB       int        `json:"unread_b" firestore:"unreadB"`
}

// NormalizePair orders two member ids so that a <= b.
func NormalizePair(u1, u2 int64) (a, b int64) {
	if u1 <= u2 {
		return u1, u2
	}
	return u2, u1
}

// RoomKey is the canonical identity of a room: listing plus normalized pair.
func RoomKey(listingID, u1, u2 int64) string {
	a, b := NormalizePair(u1, u2)
	return fmt.Sprintf("%d_%d_%d", listingID, a, b)
}

func ValidatePair(listingID, u1, u2 int64) error {
	if listingID <= 0 {
		return apperrors.InvalidArgument("listing id must be positive")
	}
	if u1 <= 0 || u2 <= 0 {
		return apperrors.InvalidArgument("member ids must be positive")
	}
	if u1 == u2 {
		return apperrors.InvalidArgument("a room needs two distinct members")
	}
	return nil
}

func NewRoom(listingID, u1, u2 int64, now time.Time) (*Room, error) {
	if err := ValidatePair(listingID, u1, u2); err != nil {
		return nil, err
	}
	a, b := NormalizePair(u1, u2)
	return &Room{
		ListingID: listingID,
		UserAID:   a,
		UserBID:   b,
		Status:    RoomStatusOpen,
		CreatedAt: now,
	}, nil
}

func (r *Room) Key() string {
	return RoomKey(r.ListingID, r.UserAID, r.UserBID)
}

// SideOf resolves which side memberID sits on; ok is false for outsiders.
func (r *Room) SideOf(memberID int64) (Side, bool) {
	switch memberID {
	case r.UserAID:
		return SideA, true
	case r.UserBID:
		return SideB, true
	}
	return "", false
}

func (r *Room) IsParticipant(memberID int64) bool {
	_, ok := r.SideOf(memberID)
	return ok
}

func (r *Room) Partner(memberID int64) int64 {
	if memberID == r.UserAID {
		return r.UserBID
	}
	return r.UserAID
}

func (r *Room) UnreadFor(side Side) int {
	if side == SideA {
		return r.UnreadA
	}
	return r.UnreadB
}
