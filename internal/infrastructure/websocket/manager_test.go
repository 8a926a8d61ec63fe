package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"tradezone/internal/domain/entity"
	"tradezone/internal/infrastructure/pubsub"
	"tradezone/pkg/errors"
)

type allowList map[string]int64

func (a allowList) Authorize(ctx context.Context, memberID int64, destination string) error {
	topic, err := entity.CanonicalTopic(destination)
	if err != nil {
		return err
	}
	if owner, ok := a[topic]; ok && owner == memberID {
		return nil
	}
	return errors.Forbidden("not a participant")
}

type recordingDispatcher struct {
	calls chan string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, memberID int64, destination string, body json.RawMessage) (interface{}, error) {
	d.calls <- destination
	if destination == "app/trade.complete.approve" {
		return nil, errors.SelfApprovalForbidden("requester cannot approve")
	}
	return map[string]int64{"member": memberID}, nil
}

type harness struct {
	manager    *Manager
	server     *httptest.Server
	dispatcher *recordingDispatcher
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	d := &recordingDispatcher{calls: make(chan string, 16)}
	m := NewManager(opts, allowList{"topic/chat.7": 5, "topic/trade.3": 5}, d)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		memberID, _ := strconv.ParseInt(r.URL.Query().Get("member"), 10, 64)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		m.Serve(conn, memberID)
	}))

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &harness{manager: m, server: srv, dispatcher: d}
}

func testOptions() Options {
	return Options{
		SendBuffer:   16,
		ReadLimit:    4096,
		WriteWait:    time.Second,
		PongWait:     5 * time.Second,
		PingInterval: 4 * time.Second,
		SendRate:     rate.Inf,
		SendBurst:    1,
	}
}

func (h *harness) dial(t *testing.T, memberID int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "?member=" + strconv.FormatInt(memberID, 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame ClientFrame) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

type received struct {
	Command     string          `json:"command"`
	ID          string          `json:"id"`
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body"`
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f received
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestSubscribeThenReceiveBroadcast(t *testing.T) {
	h := newHarness(t, testOptions())
	conn := h.dial(t, 5)

	send(t, conn, ClientFrame{Command: CommandSubscribe, ID: "sub-1", Destination: "/topic/chat.7"})
	receipt := read(t, conn)
	assert.Equal(t, FrameReceipt, receipt.Command)
	assert.Equal(t, "sub-1", receipt.ID)
	require.Equal(t, 1, h.manager.SubscriberCount("topic/chat.7"))

	env, err := pubsub.NewEnvelope("topic/chat.7", entity.ChatMessageEvent{ID: 11, RoomID: 7, Content: "hello"}, "node")
	require.NoError(t, err)
	h.manager.Deliver(env)

	msg := read(t, conn)
	assert.Equal(t, FrameMessage, msg.Command)
	assert.Equal(t, "topic/chat.7", msg.Destination)

	var event entity.ChatMessageEvent
	require.NoError(t, json.Unmarshal(msg.Body, &event))
	assert.Equal(t, int64(11), event.ID)
	assert.Equal(t, "hello", event.Content)
}

func TestSubscribeWithPaddedIDReceivesCanonicalTopic(t *testing.T) {
	h := newHarness(t, testOptions())
	conn := h.dial(t, 5)

	send(t, conn, ClientFrame{Command: CommandSubscribe, ID: "sub-1", Destination: "topic/chat.007"})
	require.Equal(t, FrameReceipt, read(t, conn).Command)
	assert.Equal(t, 1, h.manager.SubscriberCount("topic/chat.7"))
	assert.Zero(t, h.manager.SubscriberCount("topic/chat.007"))

	env, err := pubsub.NewEnvelope(entity.ChatTopic(7), entity.ChatMessageEvent{ID: 12, RoomID: 7, Content: "padded"}, "node")
	require.NoError(t, err)
	h.manager.Deliver(env)

	msg := read(t, conn)
	assert.Equal(t, FrameMessage, msg.Command)
	assert.Equal(t, "topic/chat.7", msg.Destination)

	send(t, conn, ClientFrame{Command: CommandUnsubscribe, ID: "unsub-1", Destination: "/topic/chat.0007"})
	require.Equal(t, FrameReceipt, read(t, conn).Command)
	assert.Zero(t, h.manager.SubscriberCount("topic/chat.7"))
}

func TestUnauthorizedSubscribeGetsPrivateError(t *testing.T) {
	h := newHarness(t, testOptions())
	conn := h.dial(t, 9)

	send(t, conn, ClientFrame{Command: CommandSubscribe, ID: "sub-1", Destination: "topic/trade.3"})
	frame := read(t, conn)
	assert.Equal(t, FrameError, frame.Command)
	assert.Equal(t, entity.ErrorQueue, frame.Destination)

	var body entity.ErrorEvent
	require.NoError(t, json.Unmarshal(frame.Body, &body))
	assert.Equal(t, errors.CodeForbidden, body.Code)
	assert.Equal(t, "topic/trade.3", body.Destination)
	assert.Zero(t, h.manager.SubscriberCount("topic/trade.3"))
}

func TestSendDispatchesAndReportsFailures(t *testing.T) {
	h := newHarness(t, testOptions())
	conn := h.dial(t, 5)

	send(t, conn, ClientFrame{Command: CommandSend, ID: "a1", Destination: "app/send-message", Body: json.RawMessage(`{"roomId":7,"content":"hi"}`)})
	assert.Equal(t, "app/send-message", <-h.dispatcher.calls)
	assert.Equal(t, FrameReceipt, read(t, conn).Command)

	send(t, conn, ClientFrame{Command: CommandSend, ID: "a2", Destination: "app/trade.complete.approve", Body: json.RawMessage(`{"tradeId":3}`)})
	<-h.dispatcher.calls
	frame := read(t, conn)
	assert.Equal(t, FrameError, frame.Command)

	var body entity.ErrorEvent
	require.NoError(t, json.Unmarshal(frame.Body, &body))
	assert.Equal(t, errors.CodeSelfApprovalForbidden, body.Code)
}

func TestPingAndUnknownCommand(t *testing.T) {
	h := newHarness(t, testOptions())
	conn := h.dial(t, 5)

	send(t, conn, ClientFrame{Command: CommandPing, ID: "p"})
	assert.Equal(t, FramePong, read(t, conn).Command)

	send(t, conn, ClientFrame{Command: "SHOUT"})
	assert.Equal(t, FrameError, read(t, conn).Command)
}

func TestSendIsRateLimitedPerConnection(t *testing.T) {
	opts := testOptions()
	opts.SendRate = rate.Every(time.Hour)
	opts.SendBurst = 1
	h := newHarness(t, opts)
	conn := h.dial(t, 5)

	send(t, conn, ClientFrame{Command: CommandSend, ID: "a1", Destination: "app/mark-read", Body: json.RawMessage(`{"roomId":7}`)})
	assert.Equal(t, FrameReceipt, read(t, conn).Command)

	send(t, conn, ClientFrame{Command: CommandSend, ID: "a2", Destination: "app/mark-read", Body: json.RawMessage(`{"roomId":7}`)})
	frame := read(t, conn)
	require.Equal(t, FrameError, frame.Command)

	var body entity.ErrorEvent
	require.NoError(t, json.Unmarshal(frame.Body, &body))
	assert.Equal(t, errors.CodeTooManyRequests, body.Code)
}

func TestDisconnectRemovesSubscriptions(t *testing.T) {
	h := newHarness(t, testOptions())
	conn := h.dial(t, 5)

	send(t, conn, ClientFrame{Command: CommandSubscribe, ID: "s", Destination: "topic/chat.7"})
	read(t, conn)
	require.Equal(t, 1, h.manager.SubscriberCount("topic/chat.7"))

	conn.Close()
	assert.Eventually(t, func() bool {
		return h.manager.SubscriberCount("topic/chat.7") == 0 && h.manager.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
