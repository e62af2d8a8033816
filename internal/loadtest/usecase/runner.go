package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
	"github.com/liveinteract/realtime-load-tester/internal/utils"
)

// Dependencies bundles the collaborators a run needs, injected explicitly so
// runs are independently testable and reproducible.
type Dependencies struct {
	Backend  domain.RealtimeClient
	Clock    domain.Clock
	Rng      *rand.Rand
	Logger   *logrus.Logger
	Progress *ProgressTracker // optional
}

// Runner drives the population of virtual clients for one scenario through
// ramp-up, sustained activity and shutdown.
type Runner struct {
	cfg      domain.Config
	backend  domain.RealtimeClient
	clock    domain.Clock
	rng      *rand.Rand
	logger   *logrus.Logger
	progress *ProgressTracker

	clients []*VirtualClient
}

// NewRunner creates a phase controller for one scenario.
func NewRunner(cfg domain.Config, deps Dependencies) *Runner {
	progress := deps.Progress
	if progress == nil {
		progress = NewProgressTracker(nil)
	}
	return &Runner{
		cfg:      cfg,
		backend:  deps.Backend,
		clock:    deps.Clock,
		rng:      deps.Rng,
		logger:   deps.Logger,
		progress: progress,
	}
}

// Run validates the configuration, then executes the three phases in order
// and returns the completed run metrics. Only configuration errors and
// unexpected orchestration failures are returned; per-client errors are
// reflected in the metrics instead.
func (r *Runner) Run(ctx context.Context) (domain.RunMetrics, error) {
	if err := r.cfg.Validate(); err != nil {
		return domain.RunMetrics{}, err
	}

	metrics := domain.RunMetrics{
		TotalUsers: r.cfg.UserCount,
		StartTime:  r.clock.Now(),
	}
	r.progress.StartRun(r.cfg)

	r.logger.WithFields(logrus.Fields{
		"users":    r.cfg.UserCount,
		"duration": r.cfg.DurationSeconds,
		"rampUp":   r.cfg.RampUpSeconds,
		"interval": r.cfg.ActivityIntervalSeconds,
		"channel":  r.cfg.ChannelID,
	}).Info("load test starting")

	runErr := r.rampUp(ctx, &metrics)
	if runErr == nil {
		runErr = r.sustainActivity(ctx)
	}

	// Teardown runs even when a phase was aborted, so a cancelled run never
	// leaks connections or background loops.
	r.shutdown(ctx)

	metrics.EndTime = r.clock.Now()
	metrics.UserMetrics = make([]domain.ClientMetrics, 0, len(r.clients))
	for _, c := range r.clients {
		metrics.UserMetrics = append(metrics.UserMetrics, c.Metrics())
	}
	r.progress.FinishRun()

	r.logger.WithFields(logrus.Fields{
		"successful": metrics.SuccessfulConnections,
		"failed":     metrics.FailedConnections,
	}).Info("load test finished")

	return metrics, runErr
}

// rampUp connects clients sequentially with a stagger of
// rampUpSeconds/userCount between attempts, approximating organic join
// behavior instead of bursting the backend.
func (r *Runner) rampUp(ctx context.Context, metrics *domain.RunMetrics) error {
	r.progress.SetPhase(PhaseRampUp)
	r.logger.WithField("users", r.cfg.UserCount).Info("phase 1: ramping up clients")

	delay := time.Duration(r.cfg.RampUpSeconds) * time.Second / time.Duration(r.cfg.UserCount)

	for i := 0; i < r.cfg.UserCount; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ramp-up aborted: %w", err)
		}

		id := fmt.Sprintf("user_%d", i+1)
		client := NewVirtualClient(
			id,
			utils.GenerateDisplayName(r.rng),
			r.cfg,
			r.backend,
			r.clock,
			rand.New(rand.NewSource(r.rng.Int63())),
			r.logger,
		)
		r.clients = append(r.clients, client)

		if client.Connect(ctx) {
			metrics.SuccessfulConnections++
		} else {
			metrics.FailedConnections++
		}
		r.progress.RecordConnect(client.IsConnected())

		if i < r.cfg.UserCount-1 {
			if err := r.clock.Sleep(ctx, delay); err != nil {
				return fmt.Errorf("ramp-up aborted: %w", err)
			}
		}

		if (i+1)%10 == 0 || i == r.cfg.UserCount-1 {
			r.logger.WithFields(logrus.Fields{
				"started":    i + 1,
				"total":      r.cfg.UserCount,
				"successful": metrics.SuccessfulConnections,
				"failed":     metrics.FailedConnections,
			}).Info("ramp-up progress")
		}
	}

	r.logger.Info("all clients started")
	return nil
}

// sustainActivity runs the fan-out/barrier iterations at the configured
// cadence. Each iteration dispatches SimulateActivity concurrently to every
// currently connected client and waits for all of them before proceeding; a
// slow fan-out starts the next iteration immediately rather than skipping it.
func (r *Runner) sustainActivity(ctx context.Context) error {
	activitySeconds := r.cfg.DurationSeconds - r.cfg.RampUpSeconds
	iterations := activitySeconds / r.cfg.ActivityIntervalSeconds
	interval := time.Duration(r.cfg.ActivityIntervalSeconds) * time.Second

	r.progress.SetPhase(PhaseActivity)
	r.progress.SetIterations(0, iterations)
	r.logger.WithFields(logrus.Fields{
		"seconds":    activitySeconds,
		"iterations": iterations,
	}).Info("phase 2: simulating user activity")

	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("activity aborted: %w", err)
		}

		start := r.clock.Now()
		active := r.connectedClients()

		var wg sync.WaitGroup
		for _, client := range active {
			wg.Add(1)
			go func(c *VirtualClient) {
				defer wg.Done()
				c.SimulateActivity(ctx)
			}(client)
		}
		wg.Wait()

		elapsed := r.clock.Since(start)
		r.progress.SetIterations(i+1, iterations)
		r.progress.ObserveClients(r.snapshotAll())

		r.logger.WithFields(logrus.Fields{
			"iteration": i + 1,
			"total":     iterations,
			"elapsedMs": elapsed.Milliseconds(),
			"active":    len(active),
		}).Info("activity iteration complete")

		if remaining := interval - elapsed; remaining > 0 && i < iterations-1 {
			if err := r.clock.Sleep(ctx, remaining); err != nil {
				return fmt.Errorf("activity aborted: %w", err)
			}
		}
	}

	r.logger.Info("user activity simulation complete")
	return nil
}

// shutdown disconnects every client concurrently. It always completes, even
// when individual disconnects fail.
func (r *Runner) shutdown(ctx context.Context) {
	r.progress.SetPhase(PhaseShutdown)
	r.logger.Info("phase 3: disconnecting all clients")

	var wg sync.WaitGroup
	for _, client := range r.clients {
		wg.Add(1)
		go func(c *VirtualClient) {
			defer wg.Done()
			c.Disconnect(ctx)
		}(client)
	}
	wg.Wait()

	r.logger.Info("all clients disconnected")
}

func (r *Runner) connectedClients() []*VirtualClient {
	connected := make([]*VirtualClient, 0, len(r.clients))
	for _, c := range r.clients {
		if c.IsConnected() {
			connected = append(connected, c)
		}
	}
	return connected
}

// snapshotAll reads every client's counters after a barrier, when no
// activity goroutine is running. Failed clients are included so their
// connection errors show up in the live totals.
func (r *Runner) snapshotAll() []domain.ClientMetrics {
	snaps := make([]domain.ClientMetrics, 0, len(r.clients))
	for _, c := range r.clients {
		snaps = append(snaps, c.Metrics())
	}
	return snaps
}
