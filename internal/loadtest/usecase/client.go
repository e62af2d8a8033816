package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
)

// sections a simulated participant can move between while active.
var activitySections = []string{"lobby", "quiz", "poll", "qna"}

// VirtualClient owns one simulated participant's connection lifecycle,
// presence updates and message exchange, and records its own metrics.
// Metrics are written only by the owning client; the phase controller reads
// them after the client's turn has completed.
type VirtualClient struct {
	id          string
	displayName string
	cfg         domain.Config

	backend domain.RealtimeClient
	clock   domain.Clock
	rng     *rand.Rand
	logger  *logrus.Entry

	state     domain.ConnectionState
	conn      domain.Connection
	presence  domain.PresenceChannel
	broadcast domain.BroadcastChannel

	connectionTimeMs int64
	messagesSent     int64
	startedAt        time.Time
	endedAt          time.Time

	// Updated asynchronously by transport callbacks.
	messagesReceived atomic.Int64
	presenceUpdates  atomic.Int64

	// Appended only from the client's own lifecycle calls.
	errMu  sync.Mutex
	errors []domain.ClientError
}

// NewVirtualClient creates a disconnected virtual client. The RNG is owned
// exclusively by this client so concurrent activity fan-outs stay race-free.
func NewVirtualClient(id, displayName string, cfg domain.Config, backend domain.RealtimeClient, clock domain.Clock, rng *rand.Rand, logger *logrus.Logger) *VirtualClient {
	return &VirtualClient{
		id:          id,
		displayName: displayName,
		cfg:         cfg,
		backend:     backend,
		clock:       clock,
		rng:         rng,
		logger:      logger.WithField("client", id),
		state:       domain.StateDisconnected,
	}
}

// ID returns the client's stable identifier.
func (c *VirtualClient) ID() string { return c.id }

// State returns the client's current connection state.
func (c *VirtualClient) State() domain.ConnectionState { return c.state }

// IsConnected reports whether the client completed its connect attempt.
func (c *VirtualClient) IsConnected() bool { return c.state == domain.StateConnected }

// Connect establishes the realtime connection, joins the presence channel,
// announces the initial presence payload and subscribes to broadcasts.
// A failed attempt is a normal outcome: the error is recorded, the
// time-to-failure is kept as the connection time, and false is returned.
func (c *VirtualClient) Connect(ctx context.Context) bool {
	start := c.clock.Now()
	c.startedAt = start
	c.state = domain.StateConnecting

	conn, err := c.backend.Connect(ctx, c.cfg.Credentials)
	if err != nil {
		c.failConnect(start, fmt.Errorf("transport: %w", err))
		return false
	}
	c.conn = conn

	presence, err := conn.JoinPresence(ctx, c.cfg.ChannelID, c.id, c.onPresenceEvent)
	if err != nil {
		c.failConnect(start, fmt.Errorf("presence subscription: %w", err))
		return false
	}
	c.presence = presence

	if err := presence.Announce(ctx, c.presenceState("lobby")); err != nil {
		c.failConnect(start, fmt.Errorf("initial presence announce: %w", err))
		return false
	}

	broadcast, err := conn.JoinBroadcast(ctx, c.cfg.ChannelID, c.onBroadcastReceived)
	if err != nil {
		c.failConnect(start, fmt.Errorf("broadcast subscription: %w", err))
		return false
	}
	c.broadcast = broadcast

	c.connectionTimeMs = c.clock.Since(start).Milliseconds()
	c.state = domain.StateConnected

	if c.cfg.Verbose {
		c.logger.WithField("connectionTimeMs", c.connectionTimeMs).Debug("connected")
	}
	return true
}

func (c *VirtualClient) failConnect(start time.Time, err error) {
	c.connectionTimeMs = c.clock.Since(start).Milliseconds()
	c.state = domain.StateFailed
	c.recordError(domain.ErrorKindConnection, err)
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.logger.WithError(err).Warn("connection failed")
}

// SimulateActivity performs one activity turn: move to a random section,
// re-announce presence, and with the configured probability send one
// broadcast. Failures are recorded and never abort the caller.
func (c *VirtualClient) SimulateActivity(ctx context.Context) {
	if c.state != domain.StateConnected {
		return
	}

	section := activitySections[c.rng.Intn(len(activitySections))]
	if err := c.presence.Announce(ctx, c.presenceState(section)); err != nil {
		c.recordError(domain.ErrorKindActivity, fmt.Errorf("presence announce: %w", err))
		return
	}
	c.messagesSent++

	if c.rng.Float64() < c.cfg.BroadcastProbability {
		payload := map[string]any{
			"userId":    c.id,
			"action":    "answer_submitted",
			"timestamp": c.clock.Now().UnixMilli(),
		}
		if err := c.broadcast.Send(ctx, "user_action", payload); err != nil {
			c.recordError(domain.ErrorKindActivity, fmt.Errorf("broadcast send: %w", err))
			return
		}
		c.messagesSent++
	}
}

// Disconnect leaves both channels and closes the connection. Teardown never
// fails the run; failures are recorded and swallowed.
func (c *VirtualClient) Disconnect(ctx context.Context) {
	if c.presence != nil {
		if err := c.presence.Leave(ctx); err != nil {
			c.recordError(domain.ErrorKindDisconnection, fmt.Errorf("presence leave: %w", err))
		}
		c.presence = nil
	}
	if c.broadcast != nil {
		if err := c.broadcast.Leave(ctx); err != nil {
			c.recordError(domain.ErrorKindDisconnection, fmt.Errorf("broadcast leave: %w", err))
		}
		c.broadcast = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.recordError(domain.ErrorKindDisconnection, fmt.Errorf("close: %w", err))
		}
		c.conn = nil
	}

	c.endedAt = c.clock.Now()
	c.state = domain.StateDisconnected

	if c.cfg.Verbose {
		c.logger.Debug("disconnected")
	}
}

// onBroadcastReceived is invoked asynchronously for every inbound broadcast
// on the subscribed channel, excluding this client's own sends.
func (c *VirtualClient) onBroadcastReceived(msg domain.BroadcastMessage) {
	c.messagesReceived.Add(1)
	if c.cfg.Verbose && c.cfg.LogMessages {
		c.logger.WithField("event", msg.Event).Debug("broadcast received")
	}
}

func (c *VirtualClient) onPresenceEvent(domain.PresenceEvent) {
	c.presenceUpdates.Add(1)
}

func (c *VirtualClient) presenceState(section string) domain.PresenceState {
	return domain.PresenceState{
		ParticipantID:  c.id,
		DisplayName:    c.displayName,
		CurrentSection: section,
		LastActiveAt:   c.clock.Now(),
	}
}

func (c *VirtualClient) recordError(kind string, err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.errors = append(c.errors, domain.ClientError{
		Kind:      kind,
		Message:   err.Error(),
		Timestamp: c.clock.Now(),
	})
}

// Metrics returns an immutable snapshot of the client's counters. Safe to
// call any time after the client's current turn has completed.
func (c *VirtualClient) Metrics() domain.ClientMetrics {
	c.errMu.Lock()
	errs := make([]domain.ClientError, len(c.errors))
	copy(errs, c.errors)
	c.errMu.Unlock()

	var totalMs int64
	if !c.endedAt.IsZero() && !c.startedAt.IsZero() {
		totalMs = c.endedAt.Sub(c.startedAt).Milliseconds()
	}

	return domain.ClientMetrics{
		ClientID:         c.id,
		DisplayName:      c.displayName,
		State:            c.state,
		ConnectionTimeMs: c.connectionTimeMs,
		MessagesSent:     c.messagesSent,
		MessagesReceived: c.messagesReceived.Load(),
		PresenceUpdates:  c.presenceUpdates.Load(),
		Errors:           errs,
		StartedAt:        c.startedAt,
		EndedAt:          c.endedAt,
		TotalDurationMs:  totalMs,
		ErrorCount:       len(errs),
	}
}
