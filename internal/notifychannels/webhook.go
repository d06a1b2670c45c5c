// Package notifychannels implements dispatcher.Channel for each supported
// delivery transport: generic webhook, Pushover, Web Push, and Slack.
package notifychannels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

const maxResponseBodyBytes = 64 * 1024

// WebhookChannel POSTs a JSON payload to a configured URL. It does not
// retry; a non-2xx response is returned as an error, and retries follow
// the dispatcher's schedule.
type WebhookChannel struct {
	URL        string
	Secret     string
	HTTPClient *http.Client
}

// NewWebhookChannel builds a WebhookChannel posting to url, signing
// requests with secret when non-empty.
func NewWebhookChannel(url, secret string) *WebhookChannel {
	return &WebhookChannel{URL: url, Secret: secret, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

func (c *WebhookChannel) Name() model.NotificationChannel { return model.ChannelWebhook }

type webhookPayload struct {
	EventID    string            `json:"event_id"`
	SourceID   string            `json:"source_id"`
	Type       string            `json:"type"`
	Severity   string            `json:"severity"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	ExternalID string            `json:"external_id,omitempty"`
}

func (c *WebhookChannel) Send(ctx context.Context, event *model.AnalysisEvent, externalID string) (string, error) {
	payload := webhookPayload{
		EventID:    event.ID,
		SourceID:   event.SourceID,
		Type:       event.Type,
		Severity:   event.Severity.String(),
		Confidence: event.Confidence,
		Metadata:   event.Metadata,
		OccurredAt: event.OccurredAt,
		ExternalID: externalID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Secret != "" {
		req.Header.Set("X-Glimpser-Signature", signPayload(c.Secret, body))
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := readLimited(resp.Body)
		return "", fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, b)
	}

	var reply struct {
		ID string `json:"id"`
	}
	b, _ := readLimited(resp.Body)
	if len(b) > 0 {
		_ = json.Unmarshal(b, &reply)
	}
	if reply.ID == "" {
		return externalID, nil
	}
	return reply.ID, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	limited := io.LimitReader(r, maxResponseBodyBytes+1)
	b, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(b) > maxResponseBodyBytes {
		b = b[:maxResponseBodyBytes]
	}
	return b, nil
}
