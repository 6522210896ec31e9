package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Result holds the output of a command execution.
type Result struct {
	// Output is stdout and stderr interleaved in arrival order.
	Output   string
	ExitCode int
	Duration time.Duration
}

// Execute runs argv and captures its combined output. A non-zero exit is
// reported in Result, not as an error.
func Execute(ctx context.Context, argv []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, errors.New("execute: empty command")
	}
	start := time.Now()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	// No stdin for captured commands, so a command waiting on input cannot
	// hang the pipeline. Passthrough keeps stdin.

	// The same writer for both streams: exec copies them through a single
	// goroutine, which keeps the interleaving.
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run %s: %w", argv[0], err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &Result{
		Output:   out.String(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}, nil
}

// Passthrough runs argv with inherited stdio (no capture).
func Passthrough(ctx context.Context, argv []string) (int, error) {
	if len(argv) == 0 {
		return 1, errors.New("passthrough: empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, fmt.Errorf("passthrough: %w", err)
	}
	return 0, nil
}
