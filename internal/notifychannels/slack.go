package notifychannels

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/glimpser/glimpser-go/internal/model"
)

// SlackChannel posts a formatted attachment to a Slack incoming webhook.
type SlackChannel struct {
	WebhookURL string
}

// NewSlackChannel builds a SlackChannel posting to the given incoming
// webhook URL.
func NewSlackChannel(webhookURL string) *SlackChannel {
	return &SlackChannel{WebhookURL: webhookURL}
}

func (c *SlackChannel) Name() model.NotificationChannel { return model.ChannelSlack }

func severityColor(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "#d32f2f"
	case model.SeverityHigh:
		return "#f57c00"
	case model.SeverityMedium:
		return "#fbc02d"
	default:
		return "#388e3c"
	}
}

func (c *SlackChannel) Send(_ context.Context, event *model.AnalysisEvent, externalID string) (string, error) {
	msg := slack.WebhookMessage{
		Attachments: []slack.Attachment{
			{
				Color: severityColor(event.Severity),
				Title: fmt.Sprintf("%s on %s", event.Type, event.SourceID),
				Text:  fmt.Sprintf("severity=%s confidence=%.2f", event.Severity.String(), event.Confidence),
				Fields: []slack.AttachmentField{
					{Title: "Event ID", Value: event.ID, Short: true},
					{Title: "Occurred At", Value: event.OccurredAt.Format("2006-01-02T15:04:05Z07:00"), Short: true},
				},
			},
		},
	}

	if err := slack.PostWebhook(c.WebhookURL, &msg); err != nil {
		return "", fmt.Errorf("slack webhook post failed: %w", err)
	}
	return externalID, nil
}
