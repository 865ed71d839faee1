package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"civitdl/pkg/scraper"
	"civitdl/pkg/ui"
)

// Exit codes
const (
	exitOK           = 0
	exitInvalidInput = 1
	exitFailure      = 2
)

// inputError marks failures caused by bad user input or configuration
type inputError struct {
	err error
}

func (e *inputError) Error() string { return e.err.Error() }
func (e *inputError) Unwrap() error { return e.err }

func invalidInput(err error) error {
	if err == nil {
		return nil
	}
	return &inputError{err: err}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return exitCode(ctx, err, stderr)
}

// exitCode maps a command error to the process exit status and prints it
func exitCode(ctx context.Context, err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}

	var inErr *inputError
	switch {
	case errors.As(err, &inErr),
		errors.Is(err, scraper.ErrEmptyUsername),
		errors.Is(err, scraper.ErrInvalidUsername):
		fmt.Fprintln(stderr, ui.Red(err.Error()))
		return exitInvalidInput
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		fmt.Fprintln(stderr, "\nProcess interrupted by user.")
		return exitFailure
	default:
		fmt.Fprintln(stderr, ui.Red(fmt.Sprintf("\nA critical error occurred: %v", err)))
		return exitFailure
	}
}
