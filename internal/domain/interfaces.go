package domain

import (
	"context"
	"time"
)

// PresenceEventHandler receives presence notifications for a subscribed channel.
type PresenceEventHandler func(PresenceEvent)

// BroadcastHandler receives inbound broadcast messages, excluding the
// subscriber's own sends.
type BroadcastHandler func(BroadcastMessage)

// RealtimeClient establishes connections to the realtime pub/sub backend.
type RealtimeClient interface {
	Connect(ctx context.Context, creds Credentials) (Connection, error)
}

// Connection is one established realtime connection.
type Connection interface {
	// JoinPresence subscribes to the presence channel for channelID, keyed by
	// participantKey. The returned channel is ready once subscription is confirmed.
	JoinPresence(ctx context.Context, channelID, participantKey string, onEvent PresenceEventHandler) (PresenceChannel, error)
	// JoinBroadcast subscribes to the broadcast channel for channelID.
	JoinBroadcast(ctx context.Context, channelID string, onMessage BroadcastHandler) (BroadcastChannel, error)
	Close() error
}

// PresenceChannel tracks this client's announced state on a presence topic.
type PresenceChannel interface {
	Announce(ctx context.Context, state PresenceState) error
	Leave(ctx context.Context) error
}

// BroadcastChannel exchanges fire-and-forget messages on a broadcast topic.
type BroadcastChannel interface {
	Send(ctx context.Context, event string, payload any) error
	Leave(ctx context.Context) error
}

// ReportRepository persists run and batch reports. Reports are write-once
// artifacts; saving over an existing report is an error.
type ReportRepository interface {
	SaveRunReport(report Report) (string, error)
	SaveBatchReport(report BatchReport) (string, error)
}

// RunHistoryRepository stores completed run summaries for later comparison.
type RunHistoryRepository interface {
	SaveRun(ctx context.Context, report Report) error
	RecentRuns(ctx context.Context, limit int) ([]Report, error)
}

// ResultPublisher forwards completed run reports to downstream consumers.
type ResultPublisher interface {
	PublishRunReport(ctx context.Context, report Report) error
	Close() error
}

// Clock abstracts time so runs are reproducible in tests. Sleep returns
// early with the context error when ctx is cancelled.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	Sleep(ctx context.Context, d time.Duration) error
}
