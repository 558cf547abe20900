package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/todobus/todobus/internal/broker"
	"github.com/todobus/todobus/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show todobus status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfgPath := resolvedConfigPath()

	fmt.Printf("%s todobus Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:  %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  ✗ invalid: %v\n", err)
	}

	switch cfg.Store.Kind {
	case "file":
		fmt.Printf("Store:   file %s\n", config.ExpandHome(cfg.Store.Path))
	default:
		fmt.Printf("Store:   %s\n", cfg.Store.Kind)
	}
	fmt.Printf("Queues:  %s → back → %s\n", cfg.Queues.NewItem, cfg.Queues.Snapshot)

	if cfg.Broker.Kind != "http" {
		fmt.Printf("Broker:  %s (in-process)\n", cfg.Broker.Kind)
		return nil
	}

	stats, err := broker.NewClient(cfg.Broker.URL).Stats(contextOf(cmd))
	if err != nil {
		fmt.Printf("Broker:  %s ✗ (%v)\n", cfg.Broker.URL, err)
		return nil
	}
	fmt.Printf("Broker:  %s ✓\n\n", cfg.Broker.URL)
	if len(stats) == 0 {
		fmt.Println("  (no queues yet)")
		return nil
	}
	fmt.Printf("  %-24s %8s %8s\n", "QUEUE", "READY", "INFLIGHT")
	for _, s := range stats {
		fmt.Printf("  %-24s %8d %8d\n", s.Queue, s.Ready, s.InFlight)
	}
	return nil
}
