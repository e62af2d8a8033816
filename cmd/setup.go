package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
	"github.com/liveinteract/realtime-load-tester/internal/infrastructure/database"
	"github.com/liveinteract/realtime-load-tester/internal/infrastructure/kafka"
	"github.com/liveinteract/realtime-load-tester/internal/infrastructure/realtime"
	"github.com/liveinteract/realtime-load-tester/internal/infrastructure/report"
	"github.com/liveinteract/realtime-load-tester/internal/loadtest/config"
	loadtestHTTP "github.com/liveinteract/realtime-load-tester/internal/loadtest/delivery/http"
	"github.com/liveinteract/realtime-load-tester/internal/loadtest/usecase"
)

// environment bundles everything a command needs to execute scenarios.
type environment struct {
	env       *config.EnvConfig
	logger    *logrus.Logger
	clock     domain.Clock
	rng       *rand.Rand
	backend   domain.RealtimeClient
	reports   domain.ReportRepository
	history   domain.RunHistoryRepository
	publisher domain.ResultPublisher
	tracker   *usecase.ProgressTracker
	engine    *usecase.ReportEngine

	closers []func() error
}

// sharedFlags are accepted by every command that executes scenarios.
func sharedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Usage:   "Realtime endpoint URL",
			EnvVars: []string{"REALTIME_URL"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Realtime endpoint API key",
			EnvVars: []string{"REALTIME_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "channel",
			Aliases: []string{"event"},
			Usage:   "Target event channel id",
			EnvVars: []string{"TEST_CHANNEL_ID"},
		},
		&cli.Float64Flag{
			Name:  "broadcast-probability",
			Value: 0.3,
			Usage: "Probability of sending an extra broadcast per activity turn",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable per-client debug logging",
		},
		&cli.BoolFlag{
			Name:  "log-messages",
			Usage: "Log every received broadcast message (requires --verbose)",
		},
		&cli.StringFlag{
			Name:    "reports-dir",
			Value:   "reports",
			Usage:   "Directory for JSON report files",
			EnvVars: []string{"REPORTS_DIR"},
		},
		&cli.IntFlag{
			Name:  "status-port",
			Usage: "Expose /status, /metrics and /healthz on this port during the run",
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Optional PostgreSQL URL for run history",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "kafka-broker",
			Usage:   "Optional Kafka broker for report publishing",
			EnvVars: []string{"KAFKA_BROKER"},
		},
		&cli.StringFlag{
			Name:    "kafka-topic",
			Value:   "load-test-reports",
			Usage:   "Kafka topic for report publishing",
			EnvVars: []string{"KAFKA_TOPIC"},
		},
	}
}

// newEnvironment assembles the dependency bundle for one command invocation.
func newEnvironment(ctx context.Context, c *cli.Context) (*environment, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if c.Bool("verbose") {
		logger.SetLevel(logrus.DebugLevel)
	}

	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment configuration: %w", err)
	}

	e := &environment{
		env:     envCfg,
		logger:  logger,
		clock:   usecase.NewSystemClock(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		backend: realtime.NewClient(logger),
	}

	reportsDir := c.String("reports-dir")
	if envCfg.ReportsDir != "" && !c.IsSet("reports-dir") {
		reportsDir = envCfg.ReportsDir
	}
	e.reports = report.NewFileRepository(afero.NewOsFs(), reportsDir, logger)

	if databaseURL := firstNonEmpty(c.String("database-url"), envCfg.DatabaseURL); databaseURL != "" {
		db, err := database.NewPostgresDB(databaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize run history: %w", err)
		}
		initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := db.InitSchema(initCtx); err != nil {
			return nil, fmt.Errorf("failed to initialize run history schema: %w", err)
		}
		e.history = db
		e.closers = append(e.closers, db.Close)
	}

	if broker := firstNonEmpty(c.String("kafka-broker"), envCfg.KafkaBroker); broker != "" {
		topic := firstNonEmpty(c.String("kafka-topic"), envCfg.KafkaTopic)
		producer, err := kafka.NewProducer(broker, topic, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize kafka publisher: %w", err)
		}
		e.publisher = producer
		e.closers = append(e.closers, producer.Close)
	}

	registry := prometheus.NewRegistry()
	e.tracker = usecase.NewProgressTracker(registry)
	if port := c.Int("status-port"); port > 0 {
		server := loadtestHTTP.NewStatusServer(e.tracker, registry, logger)
		server.Start(ctx, port)
	}

	e.engine = usecase.NewReportEngine(e.reports, e.history, e.publisher, e.clock, os.Stdout, logger)
	return e, nil
}

// scenarioConfig builds a run Config from flags and the environment.
func (e *environment) scenarioConfig(c *cli.Context, users, duration, rampUp, interval int) domain.Config {
	return domain.Config{
		UserCount:               users,
		DurationSeconds:         duration,
		RampUpSeconds:           rampUp,
		ActivityIntervalSeconds: interval,
		BroadcastProbability:    c.Float64("broadcast-probability"),
		Credentials: domain.Credentials{
			URL:    firstNonEmpty(c.String("url"), e.env.RealtimeURL),
			APIKey: firstNonEmpty(c.String("api-key"), e.env.RealtimeAPIKey),
		},
		ChannelID:   firstNonEmpty(c.String("channel"), e.env.ChannelID),
		Verbose:     c.Bool("verbose"),
		LogMessages: c.Bool("log-messages"),
	}
}

// runScenario executes one scenario end to end.
func (e *environment) runScenario(ctx context.Context, cfg domain.Config) (domain.RunMetrics, error) {
	runner := usecase.NewRunner(cfg, usecase.Dependencies{
		Backend:  e.backend,
		Clock:    e.clock,
		Rng:      e.rng,
		Logger:   e.logger,
		Progress: e.tracker,
	})
	return runner.Run(ctx)
}

func (e *environment) close() {
	for _, closeFn := range e.closers {
		if err := closeFn(); err != nil {
			e.logger.WithError(err).Warn("failed to close resource")
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
