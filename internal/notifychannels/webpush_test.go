package notifychannels

import (
	"context"
	"errors"
	"testing"

	"github.com/glimpser/glimpser-go/internal/model"
)

type fakeSender struct {
	calls    int
	statuses []int
	errs     []error
}

func (f *fakeSender) Send(_ context.Context, _ Subscription, _ []byte) (int, error) {
	i := f.calls
	f.calls++
	var status int
	var err error
	if i < len(f.statuses) {
		status = f.statuses[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return status, err
}

func TestWebPushSendsToAllSubscriptions(t *testing.T) {
	sender := &fakeSender{statuses: []int{201, 201}}
	ch := &WebPushChannel{
		Subscriptions: []Subscription{{Endpoint: "https://push.example/a"}, {Endpoint: "https://push.example/b"}},
		Sender:        sender,
	}

	event := &model.AnalysisEvent{ID: "evt1", Type: "motion_detected", Severity: model.SeverityHigh}
	if _, err := ch.Send(context.Background(), event, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.calls != 2 {
		t.Fatalf("expected 2 sends, got %d", sender.calls)
	}
}

func TestWebPushSucceedsIfAnySubscriptionDelivers(t *testing.T) {
	sender := &fakeSender{statuses: []int{410, 201}, errs: []error{errors.New("gone"), nil}}
	ch := &WebPushChannel{
		Subscriptions: []Subscription{{Endpoint: "https://push.example/stale"}, {Endpoint: "https://push.example/live"}},
		Sender:        sender,
	}

	event := &model.AnalysisEvent{ID: "evt1", Type: "motion_detected", Severity: model.SeverityHigh}
	if _, err := ch.Send(context.Background(), event, ""); err != nil {
		t.Fatalf("expected success when at least one subscription delivers, got %v", err)
	}
}

func TestWebPushFailsIfAllSubscriptionsFail(t *testing.T) {
	sender := &fakeSender{errs: []error{errors.New("fail1"), errors.New("fail2")}}
	ch := &WebPushChannel{
		Subscriptions: []Subscription{{Endpoint: "https://push.example/a"}, {Endpoint: "https://push.example/b"}},
		Sender:        sender,
	}

	event := &model.AnalysisEvent{ID: "evt1", Type: "motion_detected", Severity: model.SeverityHigh}
	if _, err := ch.Send(context.Background(), event, ""); err == nil {
		t.Fatal("expected error when every subscription fails")
	}
}

func TestWebPushFailsWithNoSubscriptions(t *testing.T) {
	ch := &WebPushChannel{Sender: &fakeSender{}}
	event := &model.AnalysisEvent{ID: "evt1"}
	if _, err := ch.Send(context.Background(), event, ""); err == nil {
		t.Fatal("expected error with zero subscriptions")
	}
}
