// Package chat delivers formatted messages to a Slack-compatible incoming
// webhook, such as the ones Rocket.Chat and Mattermost expose.
package chat

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kehao95/gh-notify/internal/message"
	"github.com/slack-go/slack"
)

type Poster struct {
	URL      string
	Username string
	IconURL  string
	Channel  string
	Client   *http.Client
}

func NewPoster(url string, timeout time.Duration) *Poster {
	return &Poster{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Deliver posts msg once. Failed posts are not retried.
func (p *Poster) Deliver(ctx context.Context, msg message.ChatMessage) error {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, p.URL, client, p.webhookMessage(msg)); err != nil {
		return fmt.Errorf("post to chat webhook: %w", err)
	}
	return nil
}

func (p *Poster) webhookMessage(msg message.ChatMessage) *slack.WebhookMessage {
	out := &slack.WebhookMessage{
		Username: p.Username,
		IconURL:  p.IconURL,
		Channel:  p.Channel,
		Text:     msg.Text,
	}
	for _, a := range msg.Attachments {
		fields := make([]slack.AttachmentField, 0, len(a.Fields))
		for _, f := range a.Fields {
			fields = append(fields, slack.AttachmentField{Title: f.Title, Value: f.Value, Short: f.Short})
		}
		out.Attachments = append(out.Attachments, slack.Attachment{
			Color:    a.Color,
			ThumbURL: a.ThumbURL,
			Text:     a.Text,
			Fields:   fields,
		})
	}
	return out
}
