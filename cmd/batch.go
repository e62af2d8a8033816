package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
	"github.com/liveinteract/realtime-load-tester/internal/loadtest/usecase"
)

// batchScenarios is the fixed escalation table for batch mode.
var batchScenarios = []struct {
	name     string
	users    int
	duration int
	rampUp   int
}{
	{"10 user test", 10, 60, 10},
	{"25 user test", 25, 90, 15},
	{"50 user test", 50, 120, 20},
	{"100 user test", 100, 180, 30},
}

// NewBatchCommand creates the batch command: the fixed scenario escalation
// with a cool-down between scenarios and a cross-scenario comparison.
func NewBatchCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.DurationFlag{
			Name:  "cooldown",
			Value: usecase.DefaultCoolDown,
			Usage: "Pause between scenarios",
		},
		&cli.IntFlag{
			Name:  "interval",
			Value: 5,
			Usage: "Activity interval in seconds",
		},
	}
	flags = append(flags, sharedFlags()...)

	return &cli.Command{
		Name:   "batch",
		Usage:  "Runs the scenario escalation batch and compares results",
		Flags:  flags,
		Action: batchAction,
	}
}

func batchAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := newEnvironment(ctx, c)
	if err != nil {
		return err
	}
	defer env.close()

	scenarios := make([]domain.Scenario, 0, len(batchScenarios))
	for _, s := range batchScenarios {
		scenarios = append(scenarios, domain.Scenario{
			Name:   s.name,
			Config: env.scenarioConfig(c, s.users, s.duration, s.rampUp, c.Int("interval")),
		})
	}

	env.logger.WithField("scenarios", len(scenarios)).Info("starting batch run")
	estimateBatchTime(env, scenarios, c.Duration("cooldown"))

	batch := usecase.NewBatchRunner(
		env.runScenario,
		env.engine,
		env.reports,
		env.clock,
		os.Stdout,
		env.logger,
		c.Duration("cooldown"),
	)
	batch.RunBatch(ctx, scenarios)
	return nil
}

func estimateBatchTime(env *environment, scenarios []domain.Scenario, coolDown time.Duration) {
	var total time.Duration
	for _, s := range scenarios {
		total += time.Duration(s.Config.DurationSeconds) * time.Second
	}
	total += time.Duration(len(scenarios)-1) * coolDown
	env.logger.WithField("estimated", total.Round(time.Minute)).Info("estimated total batch time")
}
