// Package broadcast fans out captured frames to multiple subscribers
// (live viewers, analyzer pipeline) without letting a slow subscriber
// stall the producer.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/glimpser/glimpser-go/internal/apperrors"
	"github.com/glimpser/glimpser-go/internal/model"
)

// ErrAtCapacity is returned by Subscribe when the hub already holds
// MaxClients active subscribers.
var ErrAtCapacity = apperrors.Unavailable("broadcast.subscribe", "hub", errAtCapacitySentinel)

type sentinel string

func (s sentinel) Error() string { return string(s) }

const errAtCapacitySentinel = sentinel("subscriber limit reached")

// Subscriber receives frames on Frames until Close is called or the hub
// shuts down. A full channel means the subscriber is lagging: the hub
// drops the oldest unread frame rather than blocking the producer.
type Subscriber struct {
	id     uint64
	frames chan *model.Frame
	hub    *Hub
	closed atomic.Bool
}

// Frames returns the channel of frames delivered to this subscriber.
func (s *Subscriber) Frames() <-chan *model.Frame { return s.frames }

// Close unregisters the subscriber and drains any buffered frames,
// releasing their reference counts.
func (s *Subscriber) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.hub.unsubscribe(s)
	for {
		select {
		case f := <-s.frames:
			if f != nil {
				f.Release()
			}
		default:
			return
		}
	}
}

// Hub is a bounded fan-out point for one source's frame stream.
type Hub struct {
	maxClients int32
	bufferSize int

	count atomic.Int32
	nextID atomic.Uint64

	mu   sync.RWMutex
	subs map[uint64]*Subscriber
}

// NewHub builds a Hub admitting at most maxClients concurrent
// subscribers, each with a channel buffer of bufferSize frames.
func NewHub(maxClients, bufferSize int) *Hub {
	return &Hub{
		maxClients: int32(maxClients),
		bufferSize: bufferSize,
		subs:       make(map[uint64]*Subscriber),
	}
}

// Subscribe admits a new subscriber via an atomic compare-and-swap
// admission check, returning ErrAtCapacity once MaxClients is reached.
func (h *Hub) Subscribe() (*Subscriber, error) {
	for {
		cur := h.count.Load()
		if cur >= h.maxClients {
			return nil, ErrAtCapacity
		}
		if h.count.CompareAndSwap(cur, cur+1) {
			break
		}
	}

	sub := &Subscriber{
		id:     h.nextID.Add(1),
		frames: make(chan *model.Frame, h.bufferSize),
		hub:    h,
	}
	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()
	return sub, nil
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	_, existed := h.subs[sub.id]
	delete(h.subs, sub.id)
	h.mu.Unlock()
	if existed {
		h.count.Add(-1)
	}
}

// Publish delivers frame to every subscriber. Frame is Retain'd once per
// subscriber that accepts it; the caller's own reference is untouched.
// A subscriber whose buffer is full is lagging: its oldest frame is
// dropped (and released) to make room rather than blocking the producer.
func (h *Hub) Publish(frame *model.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		frame.Retain()
		select {
		case sub.frames <- frame:
		default:
			select {
			case old := <-sub.frames:
				if old != nil {
					old.Release()
				}
			default:
			}
			select {
			case sub.frames <- frame:
			default:
				frame.Release()
			}
		}
	}
}

// SubscriberCount reports the number of currently admitted subscribers.
func (h *Hub) SubscriberCount() int {
	return int(h.count.Load())
}

// Close unregisters and drains every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()
	for _, s := range subs {
		s.Close()
	}
}
