package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/todobus/todobus/internal/broker"
	"github.com/todobus/todobus/internal/dependency"
)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run back and front in one process over in-memory queues",
	RunE:  runAll,
}

func init() {
	allCmd.Flags().StringVarP(&frontListen, "listen", "l", "", "Listen address (overrides front.listen)")
}

func runAll(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if frontListen != "" {
		cfg.Front.Listen = frontListen
	}

	ctx, stop := signalContext()
	defer stop()

	queues := dependency.NewMemoryTransport(cfg)
	defer queues.Close()

	b, err := dependency.NewBack(ctx, cfg, queues)
	if err != nil {
		return fmt.Errorf("build back: %w", err)
	}
	defer b.Close()

	f, err := dependency.NewFront(cfg, queues)
	if err != nil {
		return fmt.Errorf("build front: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	runBackServices(gctx, g, b)
	g.Go(func() error { return broker.ListenAndServe(gctx, cfg.Front.Listen, f.Handler()) })

	fmt.Printf("%s todobus on %s (store: %s). Press Ctrl+C to stop.\n", logo, cfg.Front.Listen, cfg.Store.Kind)
	return wait("todobus", g)
}
