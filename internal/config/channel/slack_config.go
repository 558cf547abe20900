package channel

// SlackConfig configures the Slack notifier. Messages are posted to an
// incoming webhook; Channel overrides the webhook's default channel.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhookUrl"`
	Channel    string `yaml:"channel,omitempty"`
	Username   string `yaml:"username,omitempty"`
}

func DefaultSlackConfig() SlackConfig {
	return SlackConfig{Username: "todobus"}
}
