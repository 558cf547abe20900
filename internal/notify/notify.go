// Package notify tells external chat channels about newly stored items.
//
// Notifications are best effort: a failing notifier is logged and never
// affects message acknowledgement.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/todobus/todobus/internal/config"
	"github.com/todobus/todobus/internal/schema"
)

// Notifier announces one stored item.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, item schema.Item) error
}

// Manager fans an item out to every enabled notifier.
type Manager struct {
	notifiers []Notifier
}

var _ Notifier = (*Manager)(nil)

// NewManager wraps an explicit list of notifiers.
func NewManager(notifiers ...Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// FromConfig builds a Manager with the notifiers enabled in cfg.
func FromConfig(cfg *config.NotifyConfig) (*Manager, error) {
	m := &Manager{}
	if cfg.Slack.Enabled {
		m.notifiers = append(m.notifiers, NewSlack(&cfg.Slack))
		slog.Info("notifier enabled", "name", "slack")
	}
	if cfg.Telegram.Enabled {
		tg, err := NewTelegram(&cfg.Telegram)
		if err != nil {
			return nil, err
		}
		m.notifiers = append(m.notifiers, tg)
		slog.Info("notifier enabled", "name", "telegram")
	}
	return m, nil
}

func (m *Manager) Name() string { return "manager" }

// Enabled returns the names of the configured notifiers.
func (m *Manager) Enabled() []string {
	names := make([]string, 0, len(m.notifiers))
	for _, n := range m.notifiers {
		names = append(names, n.Name())
	}
	return names
}

// Notify calls every notifier and returns their joined errors.
func (m *Manager) Notify(ctx context.Context, item schema.Item) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, item); err != nil {
			slog.Warn("notify: delivery failed", "notifier", n.Name(), "item", item.ID, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// text is the human-readable announcement shared by all notifiers.
func text(item schema.Item) string {
	return fmt.Sprintf("New todo #%d: %s", item.ID, item.Content)
}
