package usecase

import (
	"context"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig(users, duration, rampUp, interval int) domain.Config {
	return domain.Config{
		UserCount:               users,
		DurationSeconds:         duration,
		RampUpSeconds:           rampUp,
		ActivityIntervalSeconds: interval,
		BroadcastProbability:    0,
		Credentials:             domain.Credentials{URL: "wss://realtime.test", APIKey: "test-key"},
		ChannelID:               "event-42",
	}
}

func newTestRunner(cfg domain.Config, backend *fakeBackend, clock *fakeClock) *Runner {
	backend.clock = clock
	return NewRunner(cfg, Dependencies{
		Backend: backend,
		Clock:   clock,
		Rng:     rand.New(rand.NewSource(1)),
		Logger:  discardLogger(),
	})
}

func TestRunAllClientsSucceed(t *testing.T) {
	backend := newFakeBackend()
	clock := newFakeClock()
	cfg := testConfig(5, 30, 5, 5)

	metrics, err := newTestRunner(cfg, backend, clock).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, metrics.TotalUsers)
	assert.Equal(t, 5, metrics.SuccessfulConnections)
	assert.Equal(t, 0, metrics.FailedConnections)
	assert.Equal(t, metrics.TotalUsers, metrics.SuccessfulConnections+metrics.FailedConnections)
	require.Len(t, metrics.UserMetrics, 5)

	// floor((30-5)/5) = 5 iterations, one presence announce per client each.
	assert.Len(t, backend.activityAnnounces(), 25)
	for _, um := range metrics.UserMetrics {
		assert.Equal(t, domain.StateDisconnected, um.State)
		assert.Equal(t, int64(5), um.MessagesSent)
		assert.Equal(t, 0, um.ErrorCount)
		assert.False(t, um.EndedAt.IsZero())
	}

	stats := Aggregate(metrics)
	assessment := Assess(cfg, metrics, stats)
	assert.Equal(t, domain.VerdictExcellent, assessment.Verdict)
	assert.InDelta(t, 100.0, assessment.SuccessRate, 0.001)
}

func TestRunFailedConnectionsAreExcludedFromActivity(t *testing.T) {
	backend := newFakeBackend()
	backend.failOrdinals[3] = true
	backend.failOrdinals[4] = true
	clock := newFakeClock()
	cfg := testConfig(5, 30, 5, 5)

	metrics, err := newTestRunner(cfg, backend, clock).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, metrics.SuccessfulConnections)
	assert.Equal(t, 2, metrics.FailedConnections)
	require.Len(t, metrics.UserMetrics, 5)

	// Failed clients never take an activity turn.
	announces := backend.activityAnnounces()
	assert.Len(t, announces, 15)
	for _, id := range announces {
		assert.NotContains(t, []string{"user_3", "user_4"}, id)
	}

	// Failed clients still carry a connection error and a connection time.
	for _, um := range metrics.UserMetrics {
		if um.ClientID == "user_3" || um.ClientID == "user_4" {
			require.Equal(t, 1, um.ErrorCount)
			assert.Equal(t, domain.ErrorKindConnection, um.Errors[0].Kind)
		}
	}

	assessment := Assess(cfg, metrics, Aggregate(metrics))
	assert.Equal(t, domain.VerdictPoor, assessment.Verdict)
	assert.InDelta(t, 60.0, assessment.SuccessRate, 0.001)
	assert.Equal(t, 4, assessment.SafeUserCount)
}

func TestRunIterationsFormBarriers(t *testing.T) {
	backend := newFakeBackend()
	clock := newFakeClock()
	cfg := testConfig(3, 20, 2, 3)
	// floor((20-2)/3) = 6 iterations.

	_, err := newTestRunner(cfg, backend, clock).Run(context.Background())
	require.NoError(t, err)

	announces := backend.activityAnnounces()
	require.Len(t, announces, 18)

	// Every block of three announces is one iteration: all clients appear
	// exactly once before any client starts its next turn.
	for i := 0; i < len(announces); i += 3 {
		group := map[string]bool{}
		for _, id := range announces[i : i+3] {
			group[id] = true
		}
		assert.Len(t, group, 3, "iteration starting at announce %d repeated a client", i)
	}
}

func TestRunRampUpStagger(t *testing.T) {
	backend := newFakeBackend()
	clock := newFakeClock()
	cfg := testConfig(5, 30, 5, 25)
	// Single activity iteration, so every sleep but possibly the last comes
	// from the ramp-up stagger.

	_, err := newTestRunner(cfg, backend, clock).Run(context.Background())
	require.NoError(t, err)

	// 5s ramp-up / 5 users = 1s between connects, none after the last.
	sleeps := clock.recordedSleeps()
	require.Len(t, sleeps, 4)
	for _, d := range sleeps {
		assert.Equal(t, time.Second, d)
	}
}

func TestRunIterationCadenceCompensatesForSlowFanOut(t *testing.T) {
	backend := newFakeBackend()
	backend.announceAdvance = time.Second
	clock := newFakeClock()
	cfg := testConfig(1, 10, 0, 5)
	// 2 iterations; each fan-out consumes 1s of the 5s interval.

	_, err := newTestRunner(cfg, backend, clock).Run(context.Background())
	require.NoError(t, err)

	sleeps := clock.recordedSleeps()
	require.Len(t, sleeps, 1, "no sleep after the final iteration")
	assert.Equal(t, 4*time.Second, sleeps[0])
}

func TestRunIterationCadenceSkipsSleepWhenFanOutOverruns(t *testing.T) {
	backend := newFakeBackend()
	backend.announceAdvance = 6 * time.Second
	clock := newFakeClock()
	cfg := testConfig(1, 10, 0, 5)

	_, err := newTestRunner(cfg, backend, clock).Run(context.Background())
	require.NoError(t, err)

	// The fan-out overran the interval; the next iteration starts immediately.
	assert.Empty(t, clock.recordedSleeps())
}

func TestRunInvalidConfigFailsFast(t *testing.T) {
	backend := newFakeBackend()
	clock := newFakeClock()
	cfg := testConfig(0, 30, 5, 5)

	_, err := newTestRunner(cfg, backend, clock).Run(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsConfigurationError(err))
	assert.Zero(t, backend.connectCount)
}

func TestRunCancelledContextAborts(t *testing.T) {
	backend := newFakeBackend()
	clock := newFakeClock()
	cfg := testConfig(5, 30, 5, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRunner(cfg, backend, clock).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunCancelledMidRampUpStillTearsDown(t *testing.T) {
	backend := newFakeBackend()
	clock := newFakeClock()
	cfg := testConfig(3, 30, 6, 5)

	ctx, cancel := context.WithCancel(context.Background())
	clock.sleepHook = cancel // fires at the first ramp-up stagger sleep

	metrics, err := newTestRunner(cfg, backend, clock).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// Only the first client connected before the abort; it must be fully
	// torn down, not left with an open connection.
	assert.Equal(t, 1, backend.connectCount)
	assert.Equal(t, 1, backend.closes)
	assert.Equal(t, 2, backend.leaves)

	require.Len(t, metrics.UserMetrics, 1)
	assert.Equal(t, domain.StateDisconnected, metrics.UserMetrics[0].State)
	assert.False(t, metrics.UserMetrics[0].EndedAt.IsZero())
	assert.False(t, metrics.EndTime.IsZero())
}

func TestRunCancelledDuringActivityStillTearsDown(t *testing.T) {
	backend := newFakeBackend()
	clock := newFakeClock()
	cfg := testConfig(1, 10, 0, 5)
	// No ramp-up sleep with a single client, so the hook fires at the sleep
	// after the first activity iteration.

	ctx, cancel := context.WithCancel(context.Background())
	clock.sleepHook = cancel

	metrics, err := newTestRunner(cfg, backend, clock).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, backend.closes)
	require.Len(t, metrics.UserMetrics, 1)
	assert.Equal(t, domain.StateDisconnected, metrics.UserMetrics[0].State)
}

func TestRunStatusIncludesFailedClientErrors(t *testing.T) {
	backend := newFakeBackend()
	backend.failOrdinals[2] = true
	clock := newFakeClock()
	backend.clock = clock
	cfg := testConfig(2, 12, 2, 5)

	tracker := NewProgressTracker(nil)
	runner := NewRunner(cfg, Dependencies{
		Backend:  backend,
		Clock:    clock,
		Rng:      rand.New(rand.NewSource(1)),
		Logger:   discardLogger(),
		Progress: tracker,
	})
	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	// The failed client's connection error is part of the live totals even
	// though it never takes an activity turn.
	status := tracker.Status()
	assert.Equal(t, int64(1), status.ClientErrors)
	assert.Equal(t, int64(2), status.MessagesSent)
}

func TestRunEveryClientShutsDownAfterRun(t *testing.T) {
	backend := newFakeBackend()
	clock := newFakeClock()
	cfg := testConfig(4, 12, 2, 5)

	_, err := newTestRunner(cfg, backend, clock).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, backend.closes)
}
