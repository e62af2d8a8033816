package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
)

// fakeBackend is a scripted realtime backend. Connect attempts fail for the
// configured ordinals; broadcasts fan out to every subscriber except the
// sender, mirroring the self-exclusion of the real backend.
type fakeBackend struct {
	mu sync.Mutex

	failOrdinals map[int]bool
	announceErr  error
	sendErr      error
	leaveErr     error

	// Presence announces advance the clock by this much, simulating slow
	// backend acknowledgements for cadence tests.
	announceAdvance time.Duration
	clock           *fakeClock

	connectCount int
	announceLog  []string
	sendLog      []string
	subscribers  []subscriber
	leaves       int
	closes       int
}

type subscriber struct {
	key     string
	handler domain.BroadcastHandler
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{failOrdinals: map[int]bool{}}
}

func (b *fakeBackend) Connect(ctx context.Context, _ domain.Credentials) (domain.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectCount++
	if b.failOrdinals[b.connectCount] {
		return nil, errors.New("endpoint unreachable")
	}
	return &fakeConn{backend: b}, nil
}

// activityAnnounces returns the announce log without the initial announces
// made during connect.
func (b *fakeBackend) activityAnnounces() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	connects := 0
	for i := 1; i <= b.connectCount; i++ {
		if !b.failOrdinals[i] {
			connects++
		}
	}
	log := make([]string, len(b.announceLog)-connects)
	copy(log, b.announceLog[connects:])
	return log
}

type fakeConn struct {
	backend *fakeBackend
	key     string
	closed  bool
}

func (c *fakeConn) JoinPresence(_ context.Context, _ string, participantKey string, _ domain.PresenceEventHandler) (domain.PresenceChannel, error) {
	c.key = participantKey
	return &fakePresence{conn: c}, nil
}

func (c *fakeConn) JoinBroadcast(_ context.Context, _ string, onMessage domain.BroadcastHandler) (domain.BroadcastChannel, error) {
	b := c.backend
	b.mu.Lock()
	b.subscribers = append(b.subscribers, subscriber{key: c.key, handler: onMessage})
	b.mu.Unlock()
	return &fakeBroadcast{conn: c}, nil
}

func (c *fakeConn) Close() error {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	c.closed = true
	c.backend.closes++
	return nil
}

type fakePresence struct {
	conn *fakeConn
}

func (p *fakePresence) Announce(_ context.Context, state domain.PresenceState) error {
	b := p.conn.backend
	b.mu.Lock()
	if b.announceErr != nil {
		b.mu.Unlock()
		return b.announceErr
	}
	b.announceLog = append(b.announceLog, state.ParticipantID)
	advance := b.announceAdvance
	clock := b.clock
	b.mu.Unlock()

	if advance > 0 && clock != nil {
		clock.advance(advance)
	}
	return nil
}

func (p *fakePresence) Leave(context.Context) error {
	b := p.conn.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaves++
	return b.leaveErr
}

type fakeBroadcast struct {
	conn *fakeConn
}

func (f *fakeBroadcast) Send(_ context.Context, event string, payload any) error {
	b := f.conn.backend
	b.mu.Lock()
	if b.sendErr != nil {
		b.mu.Unlock()
		return b.sendErr
	}
	b.sendLog = append(b.sendLog, f.conn.key)
	targets := make([]subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		if s.key != f.conn.key {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	msg := domain.BroadcastMessage{Event: event}
	if m, ok := payload.(map[string]any); ok {
		msg.Payload = m
	}
	for _, s := range targets {
		s.handler(msg)
	}
	return nil
}

func (f *fakeBroadcast) Leave(context.Context) error {
	b := f.conn.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaves++
	return b.leaveErr
}

// fakeClock sleeps instantly, records every requested sleep, and lets fakes
// advance simulated time.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration

	// Invoked at the start of every Sleep, before the context check. Lets
	// tests cancel a run at a precise suspension point.
	sleepHook func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(t)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if c.sleepHook != nil {
		c.sleepHook()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.sleeps = append(c.sleeps, d)
		c.now = c.now.Add(d)
	}
	return nil
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) recordedSleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// fakeReportRepository captures persisted reports in memory.
type fakeReportRepository struct {
	mu           sync.Mutex
	saveErr      error
	runReports   []domain.Report
	batchReports []domain.BatchReport
}

func (r *fakeReportRepository) SaveRunReport(report domain.Report) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return "", r.saveErr
	}
	r.runReports = append(r.runReports, report)
	return "load-test-report-test.json", nil
}

func (r *fakeReportRepository) SaveBatchReport(report domain.BatchReport) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return "", r.saveErr
	}
	r.batchReports = append(r.batchReports, report)
	return "batch-test-report-test.json", nil
}
