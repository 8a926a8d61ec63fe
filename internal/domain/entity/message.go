package entity

import (
	"strings"
	"time"

	apperrors "tradezone/pkg/errors"
)

type MessageType string

const (
	MessageTypeText   MessageType = "TEXT"
	MessageTypeSystem MessageType = "SYSTEM"
)

const MaxMessageLength = 2000

// Message is immutable once stored except for the read flags.
// Ordering within a room is by ID.
type Message struct {
	ID        int64       `json:"id" firestore:"id"`
	RoomID    int64       `json:"room_id" firestore:"roomId"`
	SenderID  *int64      `json:"sender_id" firestore:"senderId"`
	Content   string      `json:"content" firestore:"content"`
	Type      MessageType `json:"type" firestore:"type"`
	CreatedAt time.Time   `json:"created_at" firestore:"createdAt"`
	Delivered bool        `json:"delivered" firestore:"delivered"`
	ReadByA   bool        `json:"read_by_a" firestore:"readByA"`
	ReadByB   bool        `json:"read_by_b" firestore:"readByB"`
}

// NewTextMessage trims content and marks the message read for the sender's own side.
func NewTextMessage(roomID, senderID int64, senderSide Side, content string, now time.Time) (*Message, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}
	sender := senderID
	return &Message{
		RoomID:    roomID,
		SenderID:  &sender,
		Content:   content,
		Type:      MessageTypeText,
		CreatedAt: now,
		ReadByA:   senderSide == SideA,
		ReadByB:   senderSide == SideB,
	}, nil
}

func NewSystemMessage(roomID int64, content string, now time.Time) (*Message, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}
	return &Message{
		RoomID:    roomID,
		Content:   content,
		Type:      MessageTypeSystem,
		CreatedAt: now,
	}, nil
}

func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperrors.InvalidArgument("message content must not be empty")
	}
	if len([]rune(content)) > MaxMessageLength {
		return "", apperrors.InvalidArgument("message content is too long")
	}
	return content, nil
}

func (m *Message) IsSystem() bool {
	return m.Type == MessageTypeSystem
}

func (m *Message) IsReadBy(side Side) bool {
	if side == SideA {
		return m.ReadByA
	}
	return m.ReadByB
}

func (m *Message) MarkReadBy(side Side) {
	if side == SideA {
		m.ReadByA = true
		return
	}
	m.ReadByB = true
}

// Preview shortens content for room listings.
func (m *Message) Preview(max int) string {
	runes := []rune(m.Content)
	if len(runes) <= max {
		return m.Content
	}
	return string(runes[:max]) + "…"
}
