package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"darkroom/internal/failure"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			if failure.Classify(err) != failure.KindInternal {
				fmt.Fprintf(os.Stderr, "hint: %s\n", failure.Hint(err))
			}
		}
		stop()
		os.Exit(1)
	}
}
