package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
)

// NewHistoryCommand creates the history command: a summary of recent runs
// from the PostgreSQL run history.
func NewHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Lists recent load test runs from the run history database",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: 20,
				Usage: "Maximum number of runs to list",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL URL for run history",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := newEnvironment(ctx, c)
	if err != nil {
		return err
	}
	defer env.close()

	if env.history == nil {
		return fmt.Errorf("run history requires a database (set DATABASE_URL or --database-url)")
	}

	reports, err := env.history.RecentRuns(ctx, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to load run history: %w", err)
	}
	if len(reports) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENDED\tCHANNEL\tUSERS\tSUCCESS\tERROR RATE\tVERDICT")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f%%\t%.2f%%\t%s\n",
			r.Metrics.EndTime.Format("2006-01-02 15:04:05"),
			r.Config.ChannelID,
			r.Metrics.TotalUsers,
			r.Assessment.SuccessRate,
			r.Assessment.ErrorRate,
			r.Assessment.Verdict,
		)
	}
	return w.Flush()
}
