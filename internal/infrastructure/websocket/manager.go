package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"tradezone/internal/infrastructure/pubsub"
	"tradezone/pkg/config"
	"tradezone/pkg/logger"
)

// SubscriptionAuthorizer decides whether a member may listen on a destination.
type SubscriptionAuthorizer interface {
	Authorize(ctx context.Context, memberID int64, destination string) error
}

// ActionDispatcher executes a SEND frame on behalf of a member.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, memberID int64, destination string, body json.RawMessage) (interface{}, error)
}

type Options struct {
	SendBuffer   int
	ReadLimit    int64
	WriteWait    time.Duration
	PongWait     time.Duration
	PingInterval time.Duration
	SendRate     rate.Limit
	SendBurst    int
}

func NewOptions(ws config.WebSocketConfig, rl config.RateLimitConfig) Options {
	opts := Options{
		SendBuffer:   ws.SendBuffer,
		ReadLimit:    ws.ReadLimit,
		WriteWait:    10 * time.Second,
		PongWait:     60 * time.Second,
		PingInterval: 54 * time.Second,
		SendRate:     rate.Limit(rl.RequestsPerSecond),
		SendBurst:    rl.Burst,
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 64 * 1024
	}
	if opts.SendRate <= 0 {
		opts.SendRate = rate.Inf
	}
	if opts.SendBurst <= 0 {
		opts.SendBurst = 1
	}
	return opts
}

// Client is one authenticated connection. The member id is bound at connect time.
type Client struct {
	ID       string
	MemberID int64
	Conn     *websocket.Conn
	Send     chan []byte

	limiter *rate.Limiter
	mu      sync.Mutex
	subs    map[string]struct{}
}

// Manager tracks connections and which topics each one listens on.
type Manager struct {
	clients    map[string]*Client
	topics     map[string]map[string]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex

	authorizer SubscriptionAuthorizer
	dispatcher ActionDispatcher
	opts       Options

	ctx  context.Context
	done chan struct{}
}

func NewManager(opts Options, authorizer SubscriptionAuthorizer, dispatcher ActionDispatcher) *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		topics:     make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		authorizer: authorizer,
		dispatcher: dispatcher,
		opts:       opts,
		ctx:        context.Background(),
		done:       make(chan struct{}),
	}
}

// Run owns client registration until ctx ends, then drops every connection.
func (m *Manager) Run(ctx context.Context) error {
	m.mutex.Lock()
	m.ctx = ctx
	m.mutex.Unlock()
	defer close(m.done)

	for {
		select {
		case client := <-m.register:
			m.mutex.Lock()
			m.clients[client.ID] = client
			m.mutex.Unlock()
			logger.L().Debug().Str("client_id", client.ID).Int64(logger.FieldMemberID, client.MemberID).Msg("websocket client registered")

		case client := <-m.unregister:
			m.removeClient(client)

		case <-ctx.Done():
			m.mutex.Lock()
			for _, client := range m.clients {
				close(client.Send)
			}
			m.clients = make(map[string]*Client)
			m.topics = make(map[string]map[string]*Client)
			m.mutex.Unlock()
			return nil
		}
	}
}

func (m *Manager) removeClient(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	client.mu.Lock()
	for topic := range client.subs {
		m.leaveLocked(topic, client)
	}
	client.mu.Unlock()

	delete(m.clients, client.ID)
	close(client.Send)
	logger.L().Debug().Str("client_id", client.ID).Int64(logger.FieldMemberID, client.MemberID).Msg("websocket client unregistered")
}

func (m *Manager) leaveLocked(topic string, client *Client) {
	if subs, ok := m.topics[topic]; ok {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(m.topics, topic)
		}
	}
}

// Serve registers conn for memberID and starts its pumps. It returns once the client is registered.
func (m *Manager) Serve(conn *websocket.Conn, memberID int64) *Client {
	client := &Client{
		ID:       uuid.NewString(),
		MemberID: memberID,
		Conn:     conn,
		Send:     make(chan []byte, m.opts.SendBuffer),
		limiter:  rate.NewLimiter(m.opts.SendRate, m.opts.SendBurst),
		subs:     make(map[string]struct{}),
	}

	select {
	case m.register <- client:
	case <-m.done:
		conn.Close()
		return client
	}

	go client.WritePump(m.opts)
	go client.ReadPump(m)
	return client
}

func (m *Manager) unregisterClient(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

func (m *Manager) subscribe(client *Client, topic string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	if _, ok := m.topics[topic]; !ok {
		m.topics[topic] = make(map[string]*Client)
	}
	m.topics[topic][client.ID] = client

	client.mu.Lock()
	client.subs[topic] = struct{}{}
	client.mu.Unlock()
}

func (m *Manager) unsubscribe(client *Client, topic string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.leaveLocked(topic, client)
	client.mu.Lock()
	delete(client.subs, topic)
	client.mu.Unlock()
}

// Deliver fans an envelope out to local subscribers of its topic.
// A subscriber whose buffer is full is disconnected.
func (m *Manager) Deliver(env *pubsub.Envelope) {
	data, err := json.Marshal(ServerFrame{
		Command:     FrameMessage,
		Destination: env.Topic,
		Body:        env.Payload,
	})
	if err != nil {
		logger.Error("WebSocket: failed to encode frame for %s: %v", env.Topic, err)
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, client := range m.topics[env.Topic] {
		select {
		case client.Send <- data:
		default:
			logger.Warn("WebSocket: client %s send buffer full, dropping connection", client.ID)
			go m.unregisterClient(client)
		}
	}
}

// Consume feeds every envelope from relay into Deliver until ctx ends.
func (m *Manager) Consume(ctx context.Context, relay pubsub.Relay) error {
	envelopes, err := relay.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-envelopes:
			if !ok {
				return nil
			}
			m.Deliver(env)
		}
	}
}

// sendFrame queues a frame for one client. Frames for unregistered clients are discarded.
func (m *Manager) sendFrame(client *Client, frame ServerFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		logger.Error("WebSocket: failed to encode frame for client %s: %v", client.ID, err)
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	select {
	case client.Send <- data:
	default:
		go m.unregisterClient(client)
	}
}

// context is the ctx handed to Run, used for actions executed on behalf of clients.
func (m *Manager) context() context.Context {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.ctx
}

func (m *Manager) ClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

func (m *Manager) SubscriberCount(topic string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.topics[topic])
}

// ReadPump reads frames until the connection fails, then unregisters the client.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.unregisterClient(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(m.opts.ReadLimit)
	c.Conn.SetReadDeadline(time.Now().Add(m.opts.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(m.opts.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: read error from client %s: %v", c.ID, err)
			}
			return
		}
		m.HandleClientMessage(c, message)
	}
}

// WritePump drains Send to the connection and keeps it alive with pings.
func (c *Client) WritePump(opts Options) {
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
