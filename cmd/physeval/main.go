package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bdougie/physeval/internal/config"
)

// Exit codes for different failure modes
const (
	ExitSuccess = 0 // Command completed; per-video failures are only logged
	ExitError   = 1 // Runtime error such as an unreadable dataset
	ExitConfig  = 2 // Invalid configuration or flags
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrInvalid):
		return ExitConfig
	default:
		return ExitError
	}
}

func execute() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg)
	defer a.close(context.WithoutCancel(ctx))

	return newRootCommand(a).ExecuteContext(ctx)
}
