package notifychannels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glimpser/glimpser-go/internal/model"
)

func TestWebhookChannelSendsSignedPayload(t *testing.T) {
	var gotSig string
	var gotBody webhookPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Glimpser-Signature")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"whk_123"}`))
	}))
	defer srv.Close()

	ch := NewWebhookChannel(srv.URL, "secret")
	event := &model.AnalysisEvent{ID: "evt1", SourceID: "cam1", Type: "motion_detected", Severity: model.SeverityHigh, Confidence: 0.9}

	externalID, err := ch.Send(context.Background(), event, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if externalID != "whk_123" {
		t.Fatalf("expected external id from response body, got %q", externalID)
	}
	if gotSig == "" {
		t.Fatal("expected signature header to be set")
	}
	if gotBody.EventID != "evt1" {
		t.Fatalf("expected event_id evt1, got %q", gotBody.EventID)
	}
}

func TestWebhookChannelReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(srv.URL, "")
	event := &model.AnalysisEvent{ID: "evt1", Severity: model.SeverityLow}
	if _, err := ch.Send(context.Background(), event, ""); err == nil {
		t.Fatal("expected error on 500 response")
	}
}
