package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/todobus/todobus/internal/broker"
	"github.com/todobus/todobus/internal/dependency"
)

var frontListen string

var frontCmd = &cobra.Command{
	Use:   "front",
	Short: "Run the front process: serve the todo page",
	RunE:  runFront,
}

func init() {
	frontCmd.Flags().StringVarP(&frontListen, "listen", "l", "", "Listen address (overrides front.listen)")
}

func runFront(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if frontListen != "" {
		cfg.Front.Listen = frontListen
	}

	ctx, stop := signalContext()
	defer stop()

	tr, err := dependency.NewTransport(cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	f, err := dependency.NewFront(cfg, tr)
	if err != nil {
		return fmt.Errorf("build front: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return broker.ListenAndServe(gctx, cfg.Front.Listen, f.Handler()) })

	fmt.Printf("%s Front on %s. Press Ctrl+C to stop.\n", logo, cfg.Front.Listen)
	return wait("front", g)
}
