package cmd

import (
	"github.com/urfave/cli/v2"
)

// NewRootApp creates the root CLI application.
func NewRootApp() *cli.App {
	return &cli.App{
		Name:  "realtime-load-tester",
		Usage: "Drives simulated participants against a realtime event channel and reports capacity.",
		Commands: []*cli.Command{
			NewRunCommand(),
			NewBatchCommand(),
			NewQuickCommand(),
			NewHistoryCommand(),
		},
	}
}
