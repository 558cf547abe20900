package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/todobus/todobus/internal/dependency"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runBackServices starts the listener and the resync scheduler in g.
// The current list is published once first so fronts converge after a
// restart.
func runBackServices(ctx context.Context, g *errgroup.Group, b *dependency.BackContainer) {
	if err := b.Publisher().Publish(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: initial publish failed: %v\n", err)
	}
	if names := b.Notifiers().Enabled(); len(names) > 0 {
		fmt.Printf("✓ Notifiers enabled: %v\n", names)
	}
	g.Go(func() error { return b.Listener().Run(ctx) })
	g.Go(func() error { return b.Resync().Start(ctx) })
}

// wait blocks on g and treats cancellation as a clean exit.
func wait(name string, g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "%s error: %v\n", name, err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
