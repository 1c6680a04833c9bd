// Package notify posts run summaries to Slack.
package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type SlackNotifier struct {
	api     *slack.Client
	channel string
}

// NewSlack returns nil when either the bot token or the channel is missing,
// which disables posting.
func NewSlack(token, channel string, opts ...slack.Option) *SlackNotifier {
	if token == "" || channel == "" {
		return nil
	}
	return &SlackNotifier{api: slack.New(token, opts...), channel: channel}
}

func (n *SlackNotifier) Notify(ctx context.Context, text string) error {
	_, _, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("posting to %s: %w", n.channel, err)
	}
	return nil
}

// Nop discards every message.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }
