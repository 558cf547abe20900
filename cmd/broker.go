package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/todobus/todobus/internal/broker"
	"github.com/todobus/todobus/internal/dependency"
)

var brokerListen string

var brokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Run the queue broker the back and front connect to",
	RunE:  runBroker,
}

func init() {
	brokerCmd.Flags().StringVarP(&brokerListen, "listen", "l", "", "Listen address (overrides broker.listen)")
}

func runBroker(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if brokerListen != "" {
		cfg.Broker.Listen = brokerListen
	}

	ctx, stop := signalContext()
	defer stop()

	queues := dependency.NewMemoryTransport(cfg)
	defer queues.Close()
	srv := broker.NewServer(queues)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Broker.Listen) })

	fmt.Printf("%s Broker on %s (lease %s, max attempts %d). Press Ctrl+C to stop.\n",
		logo, cfg.Broker.Listen, cfg.Broker.LeaseTimeout, cfg.Broker.MaxAttempts)
	return wait("broker", g)
}
