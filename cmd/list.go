package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/todobus/todobus/internal/dependency"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the latest published list",
	Long: `Print the latest published list.

Reading drains the snapshot queue, exactly like loading the web page does:
a running front and this command compete for the same snapshots.`,
	RunE: runList,
}

func runList(cmd *cobra.Command, _ []string) error {
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
	items, err := f.Reader().Refresh(contextOf(cmd))
	if err != nil {
		return err
	}

	if len(items) == 0 {
		fmt.Println("(no items)")
		return nil
	}
	for _, it := range items {
		fmt.Printf("%4d  %s\n", it.ID, it.Content)
	}
	return nil
}
