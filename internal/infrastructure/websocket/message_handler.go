package websocket

import (
	"encoding/json"
	"strings"

	"tradezone/internal/domain/entity"
	"tradezone/pkg/errors"
	"tradezone/pkg/logger"
)

// Client commands
const (
	CommandSubscribe   = "SUBSCRIBE"
	CommandUnsubscribe = "UNSUBSCRIBE"
	CommandSend        = "SEND"
	CommandPing        = "PING"
)

// Server frames
const (
	FrameMessage = "MESSAGE"
	FrameError   = "ERROR"
	FrameReceipt = "RECEIPT"
	FramePong    = "PONG"
)

type ClientFrame struct {
	Command     string          `json:"command"`
	ID          string          `json:"id,omitempty"`
	Destination string          `json:"destination,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

type ServerFrame struct {
	Command     string      `json:"command"`
	ID          string      `json:"id,omitempty"`
	Destination string      `json:"destination,omitempty"`
	Body        interface{} `json:"body,omitempty"`
}

// NormalizeDestination drops surrounding space and a leading slash.
func NormalizeDestination(dest string) string {
	return strings.TrimPrefix(strings.TrimSpace(dest), "/")
}

// HandleClientMessage processes one inbound frame from client.
func (m *Manager) HandleClientMessage(client *Client, raw []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		m.sendError(client, "", "", errors.InvalidArgument("Invalid frame format"))
		return
	}
	frame.Destination = NormalizeDestination(frame.Destination)

	switch strings.ToUpper(frame.Command) {
	case CommandPing:
		m.sendFrame(client, ServerFrame{Command: FramePong, ID: frame.ID})

	case CommandSubscribe:
		m.handleSubscribe(client, frame)

	case CommandUnsubscribe:
		topic := frame.Destination
		if canonical, err := entity.CanonicalTopic(topic); err == nil {
			topic = canonical
		}
		m.unsubscribe(client, topic)
		m.sendReceipt(client, frame, nil)

	case CommandSend:
		m.handleSend(client, frame)

	default:
		m.sendError(client, frame.ID, frame.Destination, errors.InvalidArgument("Unknown command "+frame.Command))
	}
}

func (m *Manager) handleSubscribe(client *Client, frame ClientFrame) {
	ctx := m.context()
	if err := m.authorizer.Authorize(ctx, client.MemberID, frame.Destination); err != nil {
		logger.Ctx(ctx).Info().
			Int64(logger.FieldMemberID, client.MemberID).
			Str(logger.FieldTopic, frame.Destination).
			Str("code", errors.CodeOf(err)).
			Msg("subscription denied")
		m.sendError(client, frame.ID, frame.Destination, err)
		return
	}

	topic, err := entity.CanonicalTopic(frame.Destination)
	if err != nil {
		m.sendError(client, frame.ID, frame.Destination, err)
		return
	}
	m.subscribe(client, topic)
	m.sendReceipt(client, frame, nil)
}

func (m *Manager) handleSend(client *Client, frame ClientFrame) {
	if !client.limiter.Allow() {
		m.sendError(client, frame.ID, frame.Destination, errors.TooManyRequests("Too many actions, slow down"))
		return
	}

	result, err := m.dispatcher.Dispatch(m.context(), client.MemberID, frame.Destination, frame.Body)
	if err != nil {
		m.sendError(client, frame.ID, frame.Destination, err)
		return
	}
	m.sendReceipt(client, frame, result)
}

func (m *Manager) sendReceipt(client *Client, frame ClientFrame, body interface{}) {
	if frame.ID == "" {
		return
	}
	m.sendFrame(client, ServerFrame{
		Command:     FrameReceipt,
		ID:          frame.ID,
		Destination: frame.Destination,
		Body:        body,
	})
}

// sendError delivers err privately to the acting connection's error queue.
func (m *Manager) sendError(client *Client, id, destination string, err error) {
	appErr := errors.As(err)
	if appErr.Status >= 500 {
		logger.Ctx(m.context()).Error().Err(err).Int64(logger.FieldMemberID, client.MemberID).Str(logger.FieldTopic, destination).Msg("websocket action failed")
	}

	m.sendFrame(client, ServerFrame{
		Command:     FrameError,
		ID:          id,
		Destination: entity.ErrorQueue,
		Body: entity.ErrorEvent{
			Code:        appErr.Code,
			Message:     appErr.Message,
			Destination: destination,
		},
	})
}
