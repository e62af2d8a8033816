package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
)

const (
	presenceTopicPrefix  = "realtime:event-presence-"
	broadcastTopicPrefix = "realtime:event-"

	heartbeatInterval = 30 * time.Second
	replyTimeout      = 10 * time.Second
	writeTimeout      = 10 * time.Second
)

// Client implements domain.RealtimeClient over a Phoenix-style websocket
// channel protocol.
type Client struct {
	logger *logrus.Logger
	dialer *websocket.Dialer
}

// NewClient creates a realtime client factory.
func NewClient(logger *logrus.Logger) *Client {
	return &Client{
		logger: logger,
		dialer: websocket.DefaultDialer,
	}
}

// Connect dials the realtime endpoint and starts the read and heartbeat
// loops. The returned connection is ready for channel joins.
func (c *Client) Connect(ctx context.Context, creds domain.Credentials) (domain.Connection, error) {
	u, err := url.Parse(creds.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/realtime/v1/websocket"
	q := u.Query()
	q.Set("apikey", creds.APIKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()

	ws, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial realtime endpoint: %w", err)
	}

	conn := &connection{
		ws:         ws,
		logger:     c.logger,
		pending:    make(map[string]chan replyPayload),
		broadcasts: make(map[string]domain.BroadcastHandler),
		presences:  make(map[string]domain.PresenceEventHandler),
		done:       make(chan struct{}),
	}
	go conn.readLoop()
	go conn.heartbeatLoop()
	return conn, nil
}

// connection is one established realtime socket with its joined channels.
type connection struct {
	ws     *websocket.Conn
	logger *logrus.Logger

	writeMu sync.Mutex // gorilla/websocket allows one concurrent writer

	mu         sync.Mutex
	pending    map[string]chan replyPayload
	broadcasts map[string]domain.BroadcastHandler
	presences  map[string]domain.PresenceEventHandler

	closeOnce sync.Once
	done      chan struct{}
}

// JoinPresence subscribes to the presence channel for channelID keyed by
// participantKey and waits for subscription confirmation.
func (c *connection) JoinPresence(ctx context.Context, channelID, participantKey string, onEvent domain.PresenceEventHandler) (domain.PresenceChannel, error) {
	topic := presenceTopicPrefix + channelID

	c.mu.Lock()
	c.presences[topic] = onEvent
	c.mu.Unlock()

	join := joinPayload{Config: channelConfig{Presence: &presenceConfig{Key: participantKey}}}
	if err := c.push(ctx, topic, eventJoin, join); err != nil {
		c.mu.Lock()
		delete(c.presences, topic)
		c.mu.Unlock()
		return nil, fmt.Errorf("presence channel subscription failed: %w", err)
	}

	return &presenceChannel{conn: c, topic: topic}, nil
}

// JoinBroadcast subscribes to the broadcast channel for channelID. The
// backend does not echo the subscriber's own sends (self: false).
func (c *connection) JoinBroadcast(ctx context.Context, channelID string, onMessage domain.BroadcastHandler) (domain.BroadcastChannel, error) {
	topic := broadcastTopicPrefix + channelID

	c.mu.Lock()
	c.broadcasts[topic] = onMessage
	c.mu.Unlock()

	join := joinPayload{Config: channelConfig{Broadcast: &broadcastConfig{Self: false, Ack: true}}}
	if err := c.push(ctx, topic, eventJoin, join); err != nil {
		c.mu.Lock()
		delete(c.broadcasts, topic)
		c.mu.Unlock()
		return nil, fmt.Errorf("broadcast channel subscription failed: %w", err)
	}

	return &broadcastChannel{conn: c, topic: topic}, nil
}

// Close tears the socket down and stops the background loops.
func (c *connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = c.ws.Close()
	})
	return err
}

// push sends one frame and waits for its phx_reply confirmation.
func (c *connection) push(ctx context.Context, topic, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	ref := uuid.NewString()
	replyCh := make(chan replyPayload, 1)
	c.mu.Lock()
	c.pending[ref] = replyCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, ref)
		c.mu.Unlock()
	}()

	if err := c.writeMessage(message{Topic: topic, Event: event, Payload: raw, Ref: ref}); err != nil {
		return err
	}

	timer := time.NewTimer(replyTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("connection closed")
	case <-timer.C:
		return fmt.Errorf("timed out waiting for %s reply on %s", event, topic)
	case reply := <-replyCh:
		if reply.Status != replyStatusOK {
			return fmt.Errorf("%s rejected on %s: %s", event, topic, string(reply.Response))
		}
		return nil
	}
}

func (c *connection) writeMessage(msg message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (c *connection) writeControl(messageType int, data []byte) error {
	return c.ws.WriteControl(messageType, data, time.Now().Add(writeTimeout))
}

// readLoop dispatches inbound frames: replies to their waiting pushes,
// broadcast and presence frames to their channel handlers.
func (c *connection) readLoop() {
	for {
		var msg message
		if err := c.ws.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
			default:
				c.logger.WithError(err).Debug("realtime read loop ended")
				_ = c.Close()
			}
			return
		}

		switch msg.Event {
		case eventReply:
			var reply replyPayload
			if err := json.Unmarshal(msg.Payload, &reply); err != nil {
				c.logger.WithError(err).Debug("malformed reply payload")
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[msg.Ref]
			c.mu.Unlock()
			if ok {
				ch <- reply
			}

		case eventBroadcast:
			c.dispatchBroadcast(msg)

		case eventPresenceState:
			c.dispatchPresence(msg.Topic, domain.PresenceEvent{Kind: domain.PresenceSync})

		case eventPresenceDiff:
			c.dispatchPresenceDiff(msg)

		case eventError, eventClose:
			c.logger.WithFields(logrus.Fields{"topic": msg.Topic, "event": msg.Event}).Debug("channel closed by server")
		}
	}
}

func (c *connection) dispatchBroadcast(msg message) {
	c.mu.Lock()
	handler, ok := c.broadcasts[msg.Topic]
	c.mu.Unlock()
	if !ok {
		return
	}

	var envelope broadcastEnvelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		c.logger.WithError(err).Debug("malformed broadcast payload")
		return
	}
	handler(domain.BroadcastMessage{Event: envelope.Event, Payload: envelope.Payload})
}

func (c *connection) dispatchPresenceDiff(msg message) {
	var diff presenceDiff
	if err := json.Unmarshal(msg.Payload, &diff); err != nil {
		c.logger.WithError(err).Debug("malformed presence diff")
		return
	}
	for range diff.Joins {
		c.dispatchPresence(msg.Topic, domain.PresenceEvent{Kind: domain.PresenceJoin})
	}
	for range diff.Leaves {
		c.dispatchPresence(msg.Topic, domain.PresenceEvent{Kind: domain.PresenceLeave})
	}
}

func (c *connection) dispatchPresence(topic string, event domain.PresenceEvent) {
	c.mu.Lock()
	handler, ok := c.presences[topic]
	c.mu.Unlock()
	if ok {
		handler(event)
	}
}

// heartbeatLoop keeps the socket alive per the Phoenix protocol.
func (c *connection) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			msg := message{Topic: heartbeatTopic, Event: eventHeartbeat, Payload: json.RawMessage("{}"), Ref: uuid.NewString()}
			if err := c.writeMessage(msg); err != nil {
				c.logger.WithError(err).Debug("heartbeat failed")
				return
			}
		}
	}
}

// leave unsubscribes a topic and drops its handlers.
func (c *connection) leave(ctx context.Context, topic string) error {
	err := c.push(ctx, topic, eventLeave, struct{}{})
	c.mu.Lock()
	delete(c.broadcasts, topic)
	delete(c.presences, topic)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to leave %s: %w", topic, err)
	}
	return nil
}

type presenceChannel struct {
	conn  *connection
	topic string
}

// Announce tracks this client's presence state on the channel.
func (p *presenceChannel) Announce(ctx context.Context, state domain.PresenceState) error {
	push := presencePush{Type: "presence", Event: "track", Payload: state}
	return p.conn.push(ctx, p.topic, eventPresence, push)
}

func (p *presenceChannel) Leave(ctx context.Context) error {
	return p.conn.leave(ctx, p.topic)
}

type broadcastChannel struct {
	conn  *connection
	topic string
}

// Send publishes one fire-and-forget message to the channel.
func (b *broadcastChannel) Send(ctx context.Context, event string, payload any) error {
	push := broadcastPush{Type: "broadcast", Event: event, Payload: payload}
	return b.conn.push(ctx, b.topic, eventBroadcast, push)
}

func (b *broadcastChannel) Leave(ctx context.Context) error {
	return b.conn.leave(ctx, b.topic)
}
