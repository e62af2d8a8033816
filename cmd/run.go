package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// NewRunCommand creates the single-scenario run command.
func NewRunCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "users",
			Aliases: []string{"u"},
			Value:   10,
			Usage:   "Number of concurrent simulated users",
		},
		&cli.IntFlag{
			Name:    "duration",
			Aliases: []string{"d"},
			Value:   60,
			Usage:   "Total test duration in seconds",
		},
		&cli.IntFlag{
			Name:  "rampup",
			Value: 10,
			Usage: "Ramp-up window in seconds",
		},
		&cli.IntFlag{
			Name:  "interval",
			Value: 5,
			Usage: "Activity interval in seconds",
		},
	}
	flags = append(flags, sharedFlags()...)

	return &cli.Command{
		Name:   "run",
		Usage:  "Runs a single load test scenario",
		Flags:  flags,
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := newEnvironment(ctx, c)
	if err != nil {
		return err
	}
	defer env.close()

	cfg := env.scenarioConfig(c, c.Int("users"), c.Int("duration"), c.Int("rampup"), c.Int("interval"))

	metrics, err := env.runScenario(ctx, cfg)
	if err != nil {
		return fmt.Errorf("load test failed: %w", err)
	}

	// Exit code stays zero regardless of verdict quality; only configuration
	// and fatal orchestration errors are non-zero.
	env.engine.Finalize(ctx, cfg, metrics)
	return nil
}
