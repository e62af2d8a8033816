package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
)

// PostgresDB implements domain.RunHistoryRepository: completed run summaries
// are kept queryable so capacity can be tracked across test sessions.
type PostgresDB struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewPostgresDB opens a connection pool against databaseURL and verifies it.
func NewPostgresDB(databaseURL string, logger *logrus.Logger) (*PostgresDB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("connected to PostgreSQL run history")
	return &PostgresDB{db: db, logger: logger}, nil
}

// InitSchema creates the run history table if it does not exist.
func (p *PostgresDB) InitSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS load_test_runs (
        id VARCHAR(255) PRIMARY KEY,
        channel_id VARCHAR(255) NOT NULL,
        user_count INTEGER NOT NULL,
        successful_connections INTEGER NOT NULL,
        failed_connections INTEGER NOT NULL,
        success_rate DOUBLE PRECISION NOT NULL,
        error_rate DOUBLE PRECISION NOT NULL,
        verdict VARCHAR(50) NOT NULL,
        config JSONB NOT NULL,
        statistics JSONB NOT NULL,
        started_at TIMESTAMP WITH TIME ZONE NOT NULL,
        ended_at TIMESTAMP WITH TIME ZONE NOT NULL,
        created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
    );`
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create load_test_runs table: %w", err)
	}
	return nil
}

// SaveRun inserts one completed run summary.
func (p *PostgresDB) SaveRun(ctx context.Context, report domain.Report) error {
	configJSON, err := json.Marshal(report.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	statsJSON, err := json.Marshal(report.Statistics)
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}

	query := `INSERT INTO load_test_runs
        (id, channel_id, user_count, successful_connections, failed_connections,
         success_rate, error_rate, verdict, config, statistics, started_at, ended_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = p.db.ExecContext(ctx, query,
		uuid.NewString(),
		report.Config.ChannelID,
		report.Config.UserCount,
		report.Metrics.SuccessfulConnections,
		report.Metrics.FailedConnections,
		report.Assessment.SuccessRate,
		report.Assessment.ErrorRate,
		string(report.Assessment.Verdict),
		configJSON,
		statsJSON,
		report.Metrics.StartTime,
		report.Metrics.EndTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	p.logger.WithField("channel", report.Config.ChannelID).Debug("run recorded in history")
	return nil
}

// RecentRuns returns up to limit recent run summaries, newest first. Only
// the columns needed for comparison are rehydrated.
func (p *PostgresDB) RecentRuns(ctx context.Context, limit int) ([]domain.Report, error) {
	query := `SELECT config, statistics, success_rate, error_rate, verdict,
               successful_connections, failed_connections, user_count, started_at, ended_at
        FROM load_test_runs ORDER BY created_at DESC LIMIT $1`
	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var reports []domain.Report
	for rows.Next() {
		var (
			configJSON, statsJSON []byte
			report                domain.Report
			verdict               string
		)
		if err := rows.Scan(
			&configJSON,
			&statsJSON,
			&report.Assessment.SuccessRate,
			&report.Assessment.ErrorRate,
			&verdict,
			&report.Metrics.SuccessfulConnections,
			&report.Metrics.FailedConnections,
			&report.Metrics.TotalUsers,
			&report.Metrics.StartTime,
			&report.Metrics.EndTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal(configJSON, &report.Config); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
		if err := json.Unmarshal(statsJSON, &report.Statistics); err != nil {
			return nil, fmt.Errorf("failed to decode statistics: %w", err)
		}
		report.Assessment.Verdict = domain.Verdict(verdict)
		report.Timestamp = report.Metrics.EndTime
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// Close releases the connection pool.
func (p *PostgresDB) Close() error {
	return p.db.Close()
}
