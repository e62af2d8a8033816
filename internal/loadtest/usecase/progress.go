package usecase

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
)

// Phase labels for live progress reporting.
const (
	PhaseIdle     = "idle"
	PhaseRampUp   = "ramp-up"
	PhaseActivity = "activity"
	PhaseShutdown = "shutdown"
	PhaseDone     = "done"
)

// RunStatus is the live snapshot served by the status endpoint.
type RunStatus struct {
	Phase                 string `json:"phase"`
	ChannelID             string `json:"channelId"`
	TotalUsers            int    `json:"totalUsers"`
	SuccessfulConnections int    `json:"successfulConnections"`
	FailedConnections     int    `json:"failedConnections"`
	IterationsDone        int    `json:"iterationsDone"`
	IterationsTotal       int    `json:"iterationsTotal"`
	MessagesSent          int64  `json:"messagesSent"`
	MessagesReceived      int64  `json:"messagesReceived"`
	PresenceUpdates       int64  `json:"presenceUpdates"`
	ClientErrors          int64  `json:"clientErrors"`
}

// ProgressTracker records live run progress for the status server and
// exports it as Prometheus gauges. The runner updates it only at phase
// transitions and after iteration barriers, so reads never race client turns.
type ProgressTracker struct {
	mu     sync.RWMutex
	status RunStatus

	connections      *prometheus.CounterVec
	messagesSent     prometheus.Gauge
	messagesReceived prometheus.Gauge
	presenceUpdates  prometheus.Gauge
	clientErrors     prometheus.Gauge
	iterationsDone   prometheus.Gauge
}

// NewProgressTracker creates a tracker and registers its collectors with reg.
// A nil registerer disables metric export but keeps status tracking.
func NewProgressTracker(reg prometheus.Registerer) *ProgressTracker {
	t := &ProgressTracker{
		status: RunStatus{Phase: PhaseIdle},
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loadtest_connections_total",
			Help: "Connection attempts by result.",
		}, []string{"result"}),
		messagesSent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadtest_messages_sent",
			Help: "Messages sent by connected clients so far.",
		}),
		messagesReceived: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadtest_messages_received",
			Help: "Messages received by connected clients so far.",
		}),
		presenceUpdates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadtest_presence_updates",
			Help: "Presence notifications observed by connected clients so far.",
		}),
		clientErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadtest_client_errors",
			Help: "Per-client errors recorded so far.",
		}),
		iterationsDone: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadtest_iterations_done",
			Help: "Completed activity iterations.",
		}),
	}
	if reg != nil {
		reg.MustRegister(t.connections, t.messagesSent, t.messagesReceived, t.presenceUpdates, t.clientErrors, t.iterationsDone)
	}
	return t
}

// StartRun resets the tracker for a new scenario.
func (t *ProgressTracker) StartRun(cfg domain.Config) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = RunStatus{
		Phase:      PhaseIdle,
		ChannelID:  cfg.ChannelID,
		TotalUsers: cfg.UserCount,
	}
}

// SetPhase records a phase transition.
func (t *ProgressTracker) SetPhase(phase string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Phase = phase
}

// FinishRun marks the run complete.
func (t *ProgressTracker) FinishRun() {
	t.SetPhase(PhaseDone)
}

// RecordConnect tallies one ramp-up connection attempt.
func (t *ProgressTracker) RecordConnect(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if success {
		t.status.SuccessfulConnections++
		t.connections.WithLabelValues("success").Inc()
	} else {
		t.status.FailedConnections++
		t.connections.WithLabelValues("failure").Inc()
	}
}

// SetIterations records activity-iteration progress.
func (t *ProgressTracker) SetIterations(done, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.IterationsDone = done
	t.status.IterationsTotal = total
	t.iterationsDone.Set(float64(done))
}

// ObserveClients refreshes message totals from post-barrier client snapshots.
func (t *ProgressTracker) ObserveClients(snaps []domain.ClientMetrics) {
	var sent, received, presence, errs int64
	for _, s := range snaps {
		sent += s.MessagesSent
		received += s.MessagesReceived
		presence += s.PresenceUpdates
		errs += int64(s.ErrorCount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.MessagesSent = sent
	t.status.MessagesReceived = received
	t.status.PresenceUpdates = presence
	t.status.ClientErrors = errs
	t.messagesSent.Set(float64(sent))
	t.messagesReceived.Set(float64(received))
	t.presenceUpdates.Set(float64(presence))
	t.clientErrors.Set(float64(errs))
}

// Status returns the current snapshot.
func (t *ProgressTracker) Status() RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
