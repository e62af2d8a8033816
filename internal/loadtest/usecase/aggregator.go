package usecase

import (
	"github.com/liveinteract/realtime-load-tester/internal/domain"
)

// Aggregate reduces completed run metrics into summary statistics. It is a
// pure function of its input. Connection times include failed attempts,
// whose time-to-failure is measured the same way; every division is guarded
// so empty runs yield zeros instead of NaN or Inf.
func Aggregate(m domain.RunMetrics) domain.Statistics {
	var stats domain.Statistics
	if len(m.UserMetrics) == 0 {
		return stats
	}

	var sumConnMs int64
	stats.MinConnectionTimeMs = m.UserMetrics[0].ConnectionTimeMs
	stats.MaxConnectionTimeMs = m.UserMetrics[0].ConnectionTimeMs

	for _, um := range m.UserMetrics {
		sumConnMs += um.ConnectionTimeMs
		if um.ConnectionTimeMs < stats.MinConnectionTimeMs {
			stats.MinConnectionTimeMs = um.ConnectionTimeMs
		}
		if um.ConnectionTimeMs > stats.MaxConnectionTimeMs {
			stats.MaxConnectionTimeMs = um.ConnectionTimeMs
		}
		stats.TotalMessagesSent += um.MessagesSent
		stats.TotalMessagesReceived += um.MessagesReceived
		stats.TotalPresenceUpdates += um.PresenceUpdates
		stats.TotalErrors += int64(um.ErrorCount)
	}

	stats.AvgConnectionTimeMs = float64(sumConnMs) / float64(len(m.UserMetrics))

	totalMessages := stats.TotalMessagesSent + stats.TotalMessagesReceived
	if durationSec := m.EndTime.Sub(m.StartTime).Seconds(); durationSec > 0 {
		stats.MessagesPerSecond = float64(totalMessages) / durationSec
	}
	if m.TotalUsers > 0 {
		stats.AvgMessagesPerUser = float64(totalMessages) / float64(m.TotalUsers)
	}

	return stats
}
