package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/todobus/todobus/internal/dependency"
)

var submitCmd = &cobra.Command{
	Use:   "submit <content...>",
	Short: "Submit a new item through the broker",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSubmit,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	content := strings.TrimSpace(strings.Join(args, " "))
	if content == "" {
		return errors.New("content is empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tr, err := dependency.NewTransport(cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	f, err := dependency.NewFront(cfg, tr)
	if err != nil {
		return err
	}
	if err := f.Submitter().Submit(contextOf(cmd), content); err != nil {
		return err
	}
	fmt.Printf("✓ Submitted %q to %s\n", content, cfg.Queues.NewItem)
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
