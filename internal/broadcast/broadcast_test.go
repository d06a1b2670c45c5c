package broadcast

import (
	"errors"
	"testing"

	"github.com/glimpser/glimpser-go/internal/model"
)

func TestSubscribeRespectsMaxClients(t *testing.T) {
	h := NewHub(1, 4)
	s1, err := h.Subscribe()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s1.Close()

	_, err = h.Subscribe()
	if !errors.Is(err, ErrAtCapacity) {
		t.Fatalf("expected ErrAtCapacity, got %v", err)
	}
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub(4, 4)
	sub, _ := h.Subscribe()
	defer sub.Close()

	frame := model.NewFrame("cam1", 1, []byte("data"), func() {})
	h.Publish(frame)

	select {
	case got := <-sub.Frames():
		if got.SourceID != "cam1" {
			t.Errorf("unexpected frame: %+v", got)
		}
		got.Release()
	default:
		t.Fatal("expected frame to be delivered")
	}
}

func TestPublishDropsOldestWhenSubscriberLags(t *testing.T) {
	h := NewHub(4, 1)
	sub, _ := h.Subscribe()
	defer sub.Close()

	released := 0
	f1 := model.NewFrame("cam1", 1, []byte("a"), func() { released++ })
	f2 := model.NewFrame("cam1", 2, []byte("b"), func() { released++ })

	h.Publish(f1)
	h.Publish(f2)

	got := <-sub.Frames()
	if got.Sequence != 2 {
		t.Errorf("expected lagging subscriber to receive newest frame, got sequence %d", got.Sequence)
	}
	got.Release()
}

func TestSubscriberCountTracksSubscribeAndClose(t *testing.T) {
	h := NewHub(4, 4)
	sub, _ := h.Subscribe()
	if h.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", h.SubscriberCount())
	}
	sub.Close()
	if h.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", h.SubscriberCount())
	}
}
