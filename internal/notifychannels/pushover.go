package notifychannels

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

const pushoverAPIURL = "https://api.pushover.net/1/messages.json"

// pushoverPriority maps a Severity onto Pushover's -2..2 priority scale;
// Critical uses emergency priority (2), which Pushover requires retry/
// expire parameters for.
func pushoverPriority(s model.Severity) int {
	switch s {
	case model.SeverityCritical:
		return 2
	case model.SeverityHigh:
		return 1
	case model.SeverityLow, model.SeverityInfo:
		return -1
	default:
		return 0
	}
}

// PushoverChannel delivers notifications via the Pushover API, Pushover
// does not return an idempotency token usable across retries, so
// externalID is accepted but ignored on resend.
type PushoverChannel struct {
	AppToken   string
	UserKey    string
	APIURL     string
	HTTPClient *http.Client
}

// NewPushoverChannel builds a PushoverChannel authenticating with appToken
// and delivering to userKey.
func NewPushoverChannel(appToken, userKey string) *PushoverChannel {
	return &PushoverChannel{AppToken: appToken, UserKey: userKey, APIURL: pushoverAPIURL, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

func (c *PushoverChannel) Name() model.NotificationChannel { return model.ChannelPushover }

func (c *PushoverChannel) Send(ctx context.Context, event *model.AnalysisEvent, _ string) (string, error) {
	priority := pushoverPriority(event.Severity)

	form := url.Values{}
	form.Set("token", c.AppToken)
	form.Set("user", c.UserKey)
	form.Set("title", fmt.Sprintf("%s: %s", strings.ToUpper(event.Severity.String()), event.Type))
	form.Set("message", fmt.Sprintf("source=%s confidence=%.2f", event.SourceID, event.Confidence))
	form.Set("priority", fmt.Sprintf("%d", priority))
	if priority == 2 {
		form.Set("retry", "60")
		form.Set("expire", "3600")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := readLimited(resp.Body)
		return "", fmt.Errorf("pushover returned status %d: %s", resp.StatusCode, b)
	}
	return "", nil
}
