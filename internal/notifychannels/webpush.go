package notifychannels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

// Subscription is a browser push subscription as handed back by the
// Push API, stored per-recipient by the caller.
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// webPushSender abstracts the VAPID-signed delivery so tests can
// substitute a fake without performing real encryption.
type webPushSender interface {
	Send(ctx context.Context, sub Subscription, payload []byte) (statusCode int, err error)
}

// WebPushChannel delivers notifications to subscribed browsers via the
// Web Push protocol. It fans a single event out to every subscription
// registered for the target recipient and reports failure only if every
// subscription fails, since a single stale subscription should not mark
// the whole delivery failed.
type WebPushChannel struct {
	Subscriptions []Subscription
	Sender        webPushSender
}

// NewWebPushChannel builds a WebPushChannel over subs, sending the VAPID
// subject and public key with each push; the private key is not used.
func NewWebPushChannel(subs []Subscription, vapidPublicKey, vapidPrivateKey, vapidSubject string) *WebPushChannel {
	return &WebPushChannel{
		Subscriptions: subs,
		Sender:        &httpWebPushSender{publicKey: vapidPublicKey, privateKey: vapidPrivateKey, subject: vapidSubject, client: &http.Client{Timeout: 10 * time.Second}},
	}
}

func (c *WebPushChannel) Name() model.NotificationChannel { return model.ChannelWebPush }

type webPushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (c *WebPushChannel) Send(ctx context.Context, event *model.AnalysisEvent, _ string) (string, error) {
	if len(c.Subscriptions) == 0 {
		return "", fmt.Errorf("no web push subscriptions registered")
	}

	payload, err := json.Marshal(webPushPayload{
		Title: fmt.Sprintf("%s detected on %s", event.Type, event.SourceID),
		Body:  fmt.Sprintf("severity=%s confidence=%.2f", event.Severity.String(), event.Confidence),
	})
	if err != nil {
		return "", err
	}

	var lastErr error
	delivered := 0
	for _, sub := range c.Subscriptions {
		status, err := c.Sender.Send(ctx, sub, payload)
		if err != nil {
			lastErr = err
			continue
		}
		if status >= 300 {
			lastErr = fmt.Errorf("web push endpoint returned status %d", status)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return "", lastErr
	}
	return "", nil
}

// httpWebPushSender POSTs the payload to the subscription endpoint with
// the VAPID subject and public key in the Authorization header. It does
// not sign a VAPID JWT and does not encrypt the message (aes128gcm per
// RFC 8291); the payload is sent as plain bytes.
type httpWebPushSender struct {
	publicKey  string
	privateKey string
	subject    string
	client     *http.Client
}

func (s *httpWebPushSender) Send(ctx context.Context, sub Subscription, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("TTL", "86400")
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", fmt.Sprintf("vapid t=%s, k=%s", s.subject, s.publicKey))
	req.ContentLength = int64(len(payload))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
