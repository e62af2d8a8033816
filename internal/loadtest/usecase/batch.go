package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
)

// DefaultCoolDown separates consecutive batch scenarios so one scenario's
// teardown cannot confound the next scenario's metrics.
const DefaultCoolDown = 30 * time.Second

// RunFunc executes one scenario and returns its completed metrics. It exists
// so the batch driver can be exercised without live runners.
type RunFunc func(ctx context.Context, cfg domain.Config) (domain.RunMetrics, error)

// BatchRunner runs an ordered list of scenarios sequentially with a
// cool-down between them and produces a cross-scenario comparison.
type BatchRunner struct {
	run      RunFunc
	engine   *ReportEngine
	reports  domain.ReportRepository
	clock    domain.Clock
	out      io.Writer
	logger   *logrus.Logger
	coolDown time.Duration
}

// NewBatchRunner creates a batch driver. A zero coolDown falls back to the
// default 30 seconds.
func NewBatchRunner(run RunFunc, engine *ReportEngine, reports domain.ReportRepository, clock domain.Clock, out io.Writer, logger *logrus.Logger, coolDown time.Duration) *BatchRunner {
	if coolDown <= 0 {
		coolDown = DefaultCoolDown
	}
	return &BatchRunner{
		run:      run,
		engine:   engine,
		reports:  reports,
		clock:    clock,
		out:      out,
		logger:   logger,
		coolDown: coolDown,
	}
}

// RunBatch executes the scenarios one at a time, never concurrently. A
// scenario's failure is recorded and the batch continues; results keep run
// order. The comparison and batch report are produced afterwards.
func (b *BatchRunner) RunBatch(ctx context.Context, scenarios []domain.Scenario) []domain.ScenarioResult {
	results := make([]domain.ScenarioResult, 0, len(scenarios))

	for i, scenario := range scenarios {
		b.logger.WithFields(logrus.Fields{
			"scenario": scenario.Name,
			"position": fmt.Sprintf("%d/%d", i+1, len(scenarios)),
			"users":    scenario.Config.UserCount,
		}).Info("running batch scenario")

		metrics, err := b.run(ctx, scenario.Config)
		if err != nil {
			b.logger.WithError(err).WithField("scenario", scenario.Name).Error("scenario failed")
			results = append(results, domain.ScenarioResult{
				ScenarioName: scenario.Name,
				Config:       scenario.Config,
				Success:      false,
				ErrorMessage: err.Error(),
			})
		} else {
			stats, assessment := b.engine.Finalize(ctx, scenario.Config, metrics)
			results = append(results, domain.ScenarioResult{
				ScenarioName: scenario.Name,
				Config:       scenario.Config,
				Success:      true,
				Statistics:   &stats,
				Assessment:   &assessment,
			})
		}

		if i < len(scenarios)-1 {
			b.logger.WithField("coolDown", b.coolDown).Info("cooling down before next scenario")
			if err := b.clock.Sleep(ctx, b.coolDown); err != nil {
				b.logger.WithError(err).Warn("batch aborted during cool-down")
				break
			}
		}
	}

	b.writeComparison(results)
	b.saveBatchReport(scenarios, results)
	return results
}

// writeComparison prints the cross-scenario table and the recommended safe
// concurrency ceiling: the highest user count among scenarios that completed
// with a success rate of at least 95%.
func (b *BatchRunner) writeComparison(results []domain.ScenarioResult) {
	fmt.Fprintf(b.out, "\nBatch Comparison\n")
	fmt.Fprintf(b.out, "%-24s | %6s | %8s | %12s | %8s | %6s\n", "Scenario", "Users", "Success", "Avg conn", "Messages", "Errors")
	fmt.Fprintf(b.out, "%s\n", "--------------------------------------------------------------------------------")

	for _, r := range results {
		if !r.Success {
			fmt.Fprintf(b.out, "%-24s | failed: %s\n", r.ScenarioName, r.ErrorMessage)
			continue
		}
		totalMessages := r.Statistics.TotalMessagesSent + r.Statistics.TotalMessagesReceived
		fmt.Fprintf(b.out, "%-24s | %6d | %6.1f%% | %10.0fms | %8d | %6d\n",
			r.ScenarioName,
			r.Config.UserCount,
			r.Assessment.SuccessRate,
			r.Statistics.AvgConnectionTimeMs,
			totalMessages,
			r.Statistics.TotalErrors,
		)
	}
	fmt.Fprintln(b.out)

	var best *domain.ScenarioResult
	maxAttempted := 0
	for i := range results {
		r := &results[i]
		if r.Config.UserCount > maxAttempted {
			maxAttempted = r.Config.UserCount
		}
		if !r.Success || r.Assessment.SuccessRate < 95 {
			continue
		}
		if best == nil || r.Config.UserCount > best.Config.UserCount {
			best = r
		}
	}

	if best != nil {
		fmt.Fprintf(b.out, "The system reliably supports %d concurrent users.\n", best.Config.UserCount)
		fmt.Fprintf(b.out, "  Success rate: %.2f%%\n", best.Assessment.SuccessRate)
		fmt.Fprintf(b.out, "  Avg connection time: %.0f ms\n\n", best.Statistics.AvgConnectionTimeMs)
	} else {
		fmt.Fprintf(b.out, "Unstable at the highest attempted load of %d users.\n", maxAttempted)
		fmt.Fprintf(b.out, "  Reduce concurrency or investigate errors before retesting.\n\n")
	}
}

func (b *BatchRunner) saveBatchReport(scenarios []domain.Scenario, results []domain.ScenarioResult) {
	if b.reports == nil {
		return
	}
	report := domain.BatchReport{
		Timestamp: b.clock.Now(),
		Scenarios: scenarios,
		Results:   results,
	}
	name, err := b.reports.SaveBatchReport(report)
	if err != nil {
		b.logger.WithError(err).Error("failed to save batch report")
		return
	}
	b.logger.WithField("file", name).Info("batch report saved")
}
