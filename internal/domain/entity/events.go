package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "tradezone/pkg/errors"
)

const (
	chatTopicPrefix  = "topic/chat."
	tradeTopicPrefix = "topic/trade."

	// ErrorQueue is the per-connection destination for rejected actions.
	ErrorQueue = "user/queue/errors"
)

type TopicKind string

const (
	TopicChat  TopicKind = "chat"
	TopicTrade TopicKind = "trade"
)

func ChatTopic(roomID int64) string {
	return fmt.Sprintf("%s%d", chatTopicPrefix, roomID)
}

func TradeTopic(tradeID int64) string {
	return fmt.Sprintf("%s%d", tradeTopicPrefix, tradeID)
}

// ParseTopic splits a subscribable destination into its kind and id.
// A leading slash is tolerated.
func ParseTopic(destination string) (TopicKind, int64, error) {
	dest := strings.TrimPrefix(strings.TrimSpace(destination), "/")

	var kind TopicKind
	var raw string
	switch {
	case strings.HasPrefix(dest, chatTopicPrefix):
		kind, raw = TopicChat, strings.TrimPrefix(dest, chatTopicPrefix)
	case strings.HasPrefix(dest, tradeTopicPrefix):
		kind, raw = TopicTrade, strings.TrimPrefix(dest, tradeTopicPrefix)
	default:
		return "", 0, apperrors.Forbidden(fmt.Sprintf("destination %q is not subscribable", destination))
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, apperrors.InvalidArgument(fmt.Sprintf("destination %q has no valid id", destination))
	}
	return kind, id, nil
}

// CanonicalTopic rewrites a subscribable destination to the exact topic broadcasts are published on,
// so "/topic/chat.007" becomes "topic/chat.7".
func CanonicalTopic(destination string) (string, error) {
	kind, id, err := ParseTopic(destination)
	if err != nil {
		return "", err
	}
	if kind == TopicChat {
		return ChatTopic(id), nil
	}
	return TradeTopic(id), nil
}

// ChatMessageEvent is what room subscribers receive for a chat line.
type ChatMessageEvent struct {
	ID        int64       `json:"id"`
	RoomID    int64       `json:"roomId"`
	SenderID  *int64      `json:"senderId"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	CreatedAt time.Time   `json:"createdAt"`
}

// SystemNoticeEvent is what room subscribers receive for a system message.
type SystemNoticeEvent struct {
	ID        int64       `json:"id,omitempty"`
	RoomID    int64       `json:"roomId"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
}

// EventFor renders a stored message the way room subscribers see it.
func EventFor(m *Message) interface{} {
	if m.IsSystem() {
		return SystemNoticeEvent{
			ID:        m.ID,
			RoomID:    m.RoomID,
			Type:      MessageTypeSystem,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}
	return ChatMessageEvent{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
	}
}

// TradeSignal is what trade subscribers receive after a transition.
type TradeSignal struct {
	Type          Transition  `json:"type"`
	TradeID       int64       `json:"tradeId"`
	RoomID        int64       `json:"roomId"`
	Status        TradeStatus `json:"status"`
	PendingType   PendingType `json:"pendingType"`
	RequesterID   *int64      `json:"requesterId"`
	RequesterName string      `json:"requesterName,omitempty"`
	ActorID       int64       `json:"actorId"`
	ActorName     string      `json:"actorName,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	At            time.Time   `json:"at"`
}

// ErrorEvent is delivered on ErrorQueue to the acting member only.
type ErrorEvent struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Destination string `json:"destination,omitempty"`
}
