package usecase

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
)

// Assess classifies a completed run. Rules are evaluated in order, first
// match wins. Rate denominators are guarded: no users means 0% success, no
// messages means 0% error.
func Assess(cfg domain.Config, m domain.RunMetrics, stats domain.Statistics) domain.Assessment {
	a := domain.Assessment{}

	if m.TotalUsers > 0 {
		a.SuccessRate = float64(m.SuccessfulConnections) / float64(m.TotalUsers) * 100
	}
	if total := stats.TotalMessagesSent + stats.TotalMessagesReceived; total > 0 {
		a.ErrorRate = float64(stats.TotalErrors) / float64(total) * 100
	}

	switch {
	case a.SuccessRate >= 99 && a.ErrorRate < 1:
		a.Verdict = domain.VerdictExcellent
		a.SafeUserCount = cfg.UserCount
		a.RecommendedMaxUsers = int(math.Floor(float64(cfg.UserCount) * 1.5))
	case a.SuccessRate >= 95 && a.ErrorRate < 5:
		// Supported with caveats: no capacity increase is suggested, so
		// RecommendedMaxUsers stays unset.
		a.Verdict = domain.VerdictAcceptable
		a.SafeUserCount = cfg.UserCount
	default:
		a.Verdict = domain.VerdictPoor
		a.SafeUserCount = int(math.Floor(float64(cfg.UserCount) * 0.8))
		a.RecommendedMaxUsers = a.SafeUserCount
	}
	return a
}

// WriteSummary prints the structured run summary: config echo, connection
// stats, throughput, verdict and capacity recommendation.
func WriteSummary(w io.Writer, cfg domain.Config, m domain.RunMetrics, stats domain.Statistics, a domain.Assessment) {
	line := "========================================"
	fmt.Fprintf(w, "\n%s\nLoad Test Report\n%s\n\n", line, line)

	fmt.Fprintf(w, "Configuration:\n")
	fmt.Fprintf(w, "  Concurrent users:   %d\n", cfg.UserCount)
	fmt.Fprintf(w, "  Duration:           %d s\n", cfg.DurationSeconds)
	fmt.Fprintf(w, "  Ramp-up:            %d s\n", cfg.RampUpSeconds)
	fmt.Fprintf(w, "  Activity interval:  %d s\n", cfg.ActivityIntervalSeconds)
	fmt.Fprintf(w, "  Channel:            %s\n\n", cfg.ChannelID)

	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Total run time:     %.2f s\n", m.EndTime.Sub(m.StartTime).Seconds())
	fmt.Fprintf(w, "  Total users:        %d\n", m.TotalUsers)
	fmt.Fprintf(w, "  Successful:         %d (%.2f%%)\n", m.SuccessfulConnections, a.SuccessRate)
	fmt.Fprintf(w, "  Failed:             %d\n\n", m.FailedConnections)

	fmt.Fprintf(w, "Performance (across all connection attempts):\n")
	fmt.Fprintf(w, "  Avg connection time: %.2f ms\n", stats.AvgConnectionTimeMs)
	fmt.Fprintf(w, "  Min connection time: %d ms\n", stats.MinConnectionTimeMs)
	fmt.Fprintf(w, "  Max connection time: %d ms\n", stats.MaxConnectionTimeMs)
	fmt.Fprintf(w, "  Messages sent:       %d\n", stats.TotalMessagesSent)
	fmt.Fprintf(w, "  Messages received:   %d\n", stats.TotalMessagesReceived)
	fmt.Fprintf(w, "  Presence updates:    %d\n", stats.TotalPresenceUpdates)
	fmt.Fprintf(w, "  Errors:              %d (%.2f%%)\n\n", stats.TotalErrors, a.ErrorRate)

	fmt.Fprintf(w, "Throughput:\n")
	fmt.Fprintf(w, "  Messages per second: %.2f\n", stats.MessagesPerSecond)
	fmt.Fprintf(w, "  Messages per user:   %.2f\n\n", stats.AvgMessagesPerUser)

	fmt.Fprintf(w, "Verdict: %s\n", a.Verdict)
	switch a.Verdict {
	case domain.VerdictExcellent:
		fmt.Fprintf(w, "  %d concurrent users are safely supported.\n", cfg.UserCount)
		fmt.Fprintf(w, "  Estimated maximum capacity: %d users.\n", a.RecommendedMaxUsers)
	case domain.VerdictAcceptable:
		fmt.Fprintf(w, "  %d concurrent users are supported with caveats.\n", cfg.UserCount)
		fmt.Fprintf(w, "  Monitor the error rate before increasing load.\n")
	default:
		fmt.Fprintf(w, "  The system struggled at %d concurrent users.\n", cfg.UserCount)
		fmt.Fprintf(w, "  Recommended safe capacity: %d users. Investigate errors before retrying at this scale.\n", a.SafeUserCount)
	}
	fmt.Fprintf(w, "%s\n\n", line)
}

// ReportEngine turns completed run metrics into statistics, a verdict, a
// printed summary and persisted artifacts.
type ReportEngine struct {
	reports   domain.ReportRepository
	history   domain.RunHistoryRepository // optional
	publisher domain.ResultPublisher      // optional
	clock     domain.Clock
	out       io.Writer
	logger    *logrus.Logger
}

// NewReportEngine creates a report engine. History and publisher may be nil.
func NewReportEngine(reports domain.ReportRepository, history domain.RunHistoryRepository, publisher domain.ResultPublisher, clock domain.Clock, out io.Writer, logger *logrus.Logger) *ReportEngine {
	return &ReportEngine{
		reports:   reports,
		history:   history,
		publisher: publisher,
		clock:     clock,
		out:       out,
		logger:    logger,
	}
}

// Finalize aggregates, classifies, prints and persists one run's outcome.
// Persistence failures are logged but do not fail the completed run.
func (e *ReportEngine) Finalize(ctx context.Context, cfg domain.Config, m domain.RunMetrics) (domain.Statistics, domain.Assessment) {
	stats := Aggregate(m)
	assessment := Assess(cfg, m, stats)
	WriteSummary(e.out, cfg, m, stats, assessment)

	report := domain.Report{
		Timestamp:  e.clock.Now(),
		Config:     cfg,
		Metrics:    m,
		Statistics: stats,
		Assessment: assessment,
	}

	if e.reports != nil {
		name, err := e.reports.SaveRunReport(report)
		if err != nil {
			e.logger.WithError(err).Error("failed to save run report")
		} else {
			e.logger.WithField("file", name).Info("run report saved")
		}
	}
	if e.history != nil {
		if err := e.history.SaveRun(ctx, report); err != nil {
			e.logger.WithError(err).Error("failed to record run history")
		}
	}
	if e.publisher != nil {
		if err := e.publisher.PublishRunReport(ctx, report); err != nil {
			e.logger.WithError(err).Error("failed to publish run report")
		}
	}

	return stats, assessment
}
