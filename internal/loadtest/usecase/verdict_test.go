package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
)

func TestAssessVerdictBoundaries(t *testing.T) {
	cases := []struct {
		name       string
		users      int
		successful int
		sent       int64
		received   int64
		errors     int64
		verdict    domain.Verdict
		safe       int
		maxUsers   int
	}{
		{"all perfect", 100, 100, 1000, 1000, 0, domain.VerdictExcellent, 100, 150},
		{"exactly 99 percent success", 100, 99, 1000, 0, 0, domain.VerdictExcellent, 100, 150},
		{"error rate at 1 percent drops to acceptable", 100, 100, 1000, 0, 10, domain.VerdictAcceptable, 100, 0},
		{"exactly 95 percent success", 100, 95, 1000, 0, 0, domain.VerdictAcceptable, 100, 0},
		{"error rate at 5 percent drops to poor", 100, 100, 1000, 0, 50, domain.VerdictPoor, 80, 80},
		{"below 95 percent success", 100, 94, 1000, 0, 0, domain.VerdictPoor, 80, 80},
		{"rounding of recommended capacity", 25, 25, 100, 0, 0, domain.VerdictExcellent, 25, 37},
		{"rounding of safe capacity", 7, 1, 10, 0, 0, domain.VerdictPoor, 5, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(tc.users, 60, 10, 5)
			m := domain.RunMetrics{TotalUsers: tc.users, SuccessfulConnections: tc.successful}
			stats := domain.Statistics{
				TotalMessagesSent:     tc.sent,
				TotalMessagesReceived: tc.received,
				TotalErrors:           tc.errors,
			}

			a := Assess(cfg, m, stats)
			assert.Equal(t, tc.verdict, a.Verdict)
			assert.Equal(t, tc.safe, a.SafeUserCount)
			assert.Equal(t, tc.maxUsers, a.RecommendedMaxUsers)
		})
	}
}

func TestAssessAcceptableOmitsCapacityRecommendation(t *testing.T) {
	cfg := testConfig(100, 60, 10, 5)
	m := domain.RunMetrics{TotalUsers: 100, SuccessfulConnections: 96}
	stats := domain.Statistics{TotalMessagesSent: 1000}

	a := Assess(cfg, m, stats)
	require.Equal(t, domain.VerdictAcceptable, a.Verdict)
	assert.Zero(t, a.RecommendedMaxUsers)

	// Report consumers never see a capacity recommendation for this verdict.
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "recommendedMaxUsers")
}

func TestAssessGuardsEmptyDenominators(t *testing.T) {
	a := Assess(testConfig(10, 60, 10, 5), domain.RunMetrics{}, domain.Statistics{})
	assert.Zero(t, a.SuccessRate)
	assert.Zero(t, a.ErrorRate)
	assert.Equal(t, domain.VerdictPoor, a.Verdict)
}

func TestWriteSummaryContainsVerdictAndRates(t *testing.T) {
	cfg := testConfig(10, 60, 10, 5)
	m := domain.RunMetrics{
		TotalUsers:            10,
		SuccessfulConnections: 10,
		StartTime:             time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		EndTime:               time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC),
	}
	stats := domain.Statistics{TotalMessagesSent: 100, TotalMessagesReceived: 900}
	a := Assess(cfg, m, stats)

	var buf bytes.Buffer
	WriteSummary(&buf, cfg, m, stats, a)

	out := buf.String()
	assert.Contains(t, out, "Verdict: EXCELLENT")
	assert.Contains(t, out, "Successful:         10 (100.00%)")
	assert.Contains(t, out, "across all connection attempts")
	assert.Contains(t, out, "Estimated maximum capacity: 15 users.")
}

func TestFinalizePersistsReportAndSurvivesSinkFailures(t *testing.T) {
	reports := &fakeReportRepository{saveErr: nil}
	clock := newFakeClock()
	var buf bytes.Buffer
	engine := NewReportEngine(reports, nil, nil, clock, &buf, discardLogger())

	cfg := testConfig(5, 30, 5, 5)
	m := domain.RunMetrics{TotalUsers: 5, SuccessfulConnections: 5, StartTime: clock.Now(), EndTime: clock.Now().Add(30 * time.Second)}

	stats, a := engine.Finalize(context.Background(), cfg, m)
	assert.Equal(t, domain.VerdictExcellent, a.Verdict)
	assert.Zero(t, stats.TotalErrors)

	require.Len(t, reports.runReports, 1)
	assert.Equal(t, cfg, reports.runReports[0].Config)
	assert.True(t, strings.Contains(buf.String(), "Load Test Report"))
}

func TestFinalizeLogsButDoesNotFailOnSaveError(t *testing.T) {
	reports := &fakeReportRepository{saveErr: assert.AnError}
	var buf bytes.Buffer
	engine := NewReportEngine(reports, nil, nil, newFakeClock(), &buf, discardLogger())

	cfg := testConfig(5, 30, 5, 5)
	_, a := engine.Finalize(context.Background(), cfg, domain.RunMetrics{TotalUsers: 5, SuccessfulConnections: 5})
	assert.Equal(t, domain.VerdictExcellent, a.Verdict)
}
