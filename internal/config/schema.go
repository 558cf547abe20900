// Package config defines the configuration schema for todobus.
//
// The file is YAML with camelCase keys, by default ~/.todobus/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/todobus/todobus/internal/config/channel"
)

// QueuesConfig names the two channels between back and front.
type QueuesConfig struct {
	NewItem  string `yaml:"newItem"`
	Snapshot string `yaml:"snapshot"`
}

func defaultQueuesConfig() QueuesConfig {
	return QueuesConfig{NewItem: "new-todo", Snapshot: "get-todos"}
}

// BrokerConfig selects the queue transport.
type BrokerConfig struct {
	Kind         string        `yaml:"kind"` // "http" or "memory"
	URL          string        `yaml:"url"`
	Listen       string        `yaml:"listen"`
	MaxAttempts  int           `yaml:"maxAttempts"`
	LeaseTimeout time.Duration `yaml:"leaseTimeout"`
}

func defaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		Kind:         "http",
		URL:          "http://localhost:8900",
		Listen:       ":8900",
		MaxAttempts:  5,
		LeaseTimeout: 30 * time.Second,
	}
}

// StoreConfig selects the item store backend.
type StoreConfig struct {
	Kind string `yaml:"kind"` // "memory", "file" or "postgres"
	Path string `yaml:"path,omitempty"`
	DSN  string `yaml:"dsn,omitempty"`
}

func defaultStoreConfig() StoreConfig {
	return StoreConfig{Kind: "file", Path: "~/.todobus/items.json"}
}

// BackConfig tunes the back process.
type BackConfig struct {
	// Resync is a cron expression for periodic republishing; empty disables it.
	Resync       string        `yaml:"resync"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

func defaultBackConfig() BackConfig {
	return BackConfig{Resync: "@every 1m", PollInterval: time.Second}
}

// FrontConfig tunes the front process.
type FrontConfig struct {
	Listen     string `yaml:"listen"`
	BatchSize  int    `yaml:"batchSize"`
	MaxBatches int    `yaml:"maxBatches"`
}

func defaultFrontConfig() FrontConfig {
	return FrontConfig{Listen: ":8080", BatchSize: 10, MaxBatches: 100}
}

// NotifyConfig holds the optional new-item notifiers.
type NotifyConfig struct {
	Slack    channel.SlackConfig    `yaml:"slack"`
	Telegram channel.TelegramConfig `yaml:"telegram"`
}

func defaultNotifyConfig() NotifyConfig {
	return NotifyConfig{
		Slack:    channel.DefaultSlackConfig(),
		Telegram: channel.DefaultTelegramConfig(),
	}
}

// Config is the root configuration object.
type Config struct {
	Queues QueuesConfig `yaml:"queues"`
	Broker BrokerConfig `yaml:"broker"`
	Store  StoreConfig  `yaml:"store"`
	Back   BackConfig   `yaml:"back"`
	Front  FrontConfig  `yaml:"front"`
	Notify NotifyConfig `yaml:"notify"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Queues: defaultQueuesConfig(),
		Broker: defaultBrokerConfig(),
		Store:  defaultStoreConfig(),
		Back:   defaultBackConfig(),
		Front:  defaultFrontConfig(),
		Notify: defaultNotifyConfig(),
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Queues.NewItem == "" || c.Queues.Snapshot == "" {
		errs = append(errs, errors.New("queues: newItem and snapshot must be set"))
	} else if c.Queues.NewItem == c.Queues.Snapshot {
		errs = append(errs, fmt.Errorf("queues: newItem and snapshot must differ (both %q)", c.Queues.NewItem))
	}

	switch c.Broker.Kind {
	case "memory":
	case "http":
		if c.Broker.URL == "" {
			errs = append(errs, errors.New("broker: url is required for kind http"))
		}
	default:
		errs = append(errs, fmt.Errorf("broker: unknown kind %q", c.Broker.Kind))
	}
	if c.Broker.MaxAttempts < 1 {
		errs = append(errs, errors.New("broker: maxAttempts must be at least 1"))
	}

	switch c.Store.Kind {
	case "memory":
	case "file":
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store: path is required for kind file"))
		}
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store: dsn is required for kind postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("store: unknown kind %q", c.Store.Kind))
	}

	if c.Front.BatchSize < 1 || c.Front.MaxBatches < 1 {
		errs = append(errs, errors.New("front: batchSize and maxBatches must be at least 1"))
	}

	if c.Notify.Slack.Enabled && c.Notify.Slack.WebhookURL == "" {
		errs = append(errs, errors.New("notify.slack: webhookUrl is required when enabled"))
	}
	if c.Notify.Telegram.Enabled && (c.Notify.Telegram.Token == "" || c.Notify.Telegram.ChatID == "") {
		errs = append(errs, errors.New("notify.telegram: token and chatId are required when enabled"))
	}
	return errors.Join(errs...)
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
