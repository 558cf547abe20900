package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/todobus/todobus/internal/dependency"
)

var backCmd = &cobra.Command{
	Use:   "back",
	Short: "Run the back process: store submitted items and publish the list",
	RunE:  runBack,
}

func runBack(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	tr, err := dependency.NewTransport(cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	b, err := dependency.NewBack(ctx, cfg, tr)
	if err != nil {
		return fmt.Errorf("build back: %w", err)
	}
	defer b.Close()

	fmt.Printf("%s Back consuming %q, publishing to %q (store: %s)\n",
		logo, cfg.Queues.NewItem, cfg.Queues.Snapshot, cfg.Store.Kind)

	g, gctx := errgroup.WithContext(ctx)
	runBackServices(gctx, g, b)

	fmt.Printf("%s Back running. Press Ctrl+C to stop.\n", logo)
	return wait("back", g)
}
