package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
)

// quickPreset is one entry in the interactive scenario picker.
type quickPreset struct {
	name     string
	users    int
	duration int
	rampUp   int
}

var quickPresets = []quickPreset{
	{"Micro test (5 users)", 5, 30, 5},
	{"Light test (10 users)", 10, 60, 10},
	{"Medium test (25 users)", 25, 120, 15},
	{"Heavy test (50 users)", 50, 120, 20},
	{"Stress test (100 users)", 100, 180, 30},
	{"Extreme test (200 users)", 200, 300, 60},
}

// NewQuickCommand creates the interactive scenario picker.
func NewQuickCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:  "interval",
			Value: 5,
			Usage: "Activity interval in seconds",
		},
	}
	flags = append(flags, sharedFlags()...)

	return &cli.Command{
		Name:   "quick",
		Usage:  "Interactively picks a preset scenario and runs it",
		Flags:  flags,
		Action: quickAction,
	}
}

func quickAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := newEnvironment(ctx, c)
	if err != nil {
		return err
	}
	defer env.close()

	preset, err := pickPreset(os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	if preset == nil {
		return nil // operator chose to exit
	}

	cfg := env.scenarioConfig(c, preset.users, preset.duration, preset.rampUp, c.Int("interval"))

	metrics, err := env.runScenario(ctx, cfg)
	if err != nil {
		return fmt.Errorf("load test failed: %w", err)
	}
	env.engine.Finalize(ctx, cfg, metrics)
	return nil
}

// pickPreset prompts for a scenario selection. A nil preset with nil error
// means the operator chose to exit.
func pickPreset(in io.Reader, out io.Writer) (*quickPreset, error) {
	fmt.Fprintf(out, "\nSelect a test scenario:\n\n")
	for i, preset := range quickPresets {
		fmt.Fprintf(out, "  %d. %s\n", i+1, preset.name)
		fmt.Fprintf(out, "     %d concurrent users, %d seconds\n\n", preset.users, preset.duration)
	}
	fmt.Fprintf(out, "  %d. Custom test\n", len(quickPresets)+1)
	fmt.Fprintf(out, "  0. Exit\n\n")

	reader := bufio.NewReader(in)
	choice, err := prompt(reader, out, fmt.Sprintf("Enter choice (0-%d): ", len(quickPresets)+1))
	if err != nil {
		return nil, err
	}

	switch {
	case choice == "0":
		return nil, nil
	case choice == strconv.Itoa(len(quickPresets)+1):
		return customPreset(reader, out)
	default:
		index, err := strconv.Atoi(choice)
		if err != nil || index < 1 || index > len(quickPresets) {
			return nil, fmt.Errorf("invalid choice %q", choice)
		}
		preset := quickPresets[index-1]
		return &preset, nil
	}
}

func customPreset(reader *bufio.Reader, out io.Writer) (*quickPreset, error) {
	users, err := promptInt(reader, out, "Concurrent users (default 10): ", 10)
	if err != nil {
		return nil, err
	}
	duration, err := promptInt(reader, out, "Duration in seconds (default 60): ", 60)
	if err != nil {
		return nil, err
	}
	rampUp, err := promptInt(reader, out, "Ramp-up in seconds (default 10): ", 10)
	if err != nil {
		return nil, err
	}
	return &quickPreset{name: "Custom test", users: users, duration: duration, rampUp: rampUp}, nil
}

func prompt(reader *bufio.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprint(out, question)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func promptInt(reader *bufio.Reader, out io.Writer, question string, fallback int) (int, error) {
	answer, err := prompt(reader, out, question)
	if err != nil {
		return 0, err
	}
	if answer == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(answer)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid number %q", answer)
	}
	return value, nil
}
