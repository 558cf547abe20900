package notify

import (
	"context"

	slackgo "github.com/slack-go/slack"

	"github.com/todobus/todobus/internal/config/channel"
	"github.com/todobus/todobus/internal/schema"
)

// Slack posts to an incoming webhook.
type Slack struct {
	cfg *channel.SlackConfig
}

func NewSlack(cfg *channel.SlackConfig) *Slack {
	return &Slack{cfg: cfg}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Notify(ctx context.Context, item schema.Item) error {
	return slackgo.PostWebhookContext(ctx, s.cfg.WebhookURL, &slackgo.WebhookMessage{
		Channel:  s.cfg.Channel,
		Username: s.cfg.Username,
		Text:     text(item),
	})
}
