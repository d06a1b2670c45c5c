package bufpool

import (
	"testing"
	"time"
)

func TestGetReturnsRequestedLength(t *testing.T) {
	p := New(time.Minute)
	b := p.Get(1024)
	if len(b.Bytes()) != 1024 {
		t.Fatalf("expected length 1024, got %d", len(b.Bytes()))
	}
	b.Release()
}

func TestGetPicksSmallestFittingTier(t *testing.T) {
	p := New(time.Minute)
	small := p.Get(1000)
	if small.t != p.tiers[0] {
		t.Errorf("expected small tier for 1000 bytes")
	}
	medium := p.Get(smallTierBytes + 1)
	if medium.t != p.tiers[1] {
		t.Errorf("expected medium tier for %d bytes", smallTierBytes+1)
	}
	oversized := p.Get(largeTierBytes + 1)
	if oversized.t != nil {
		t.Errorf("expected nil tier (one-off allocation) for oversized request")
	}
	small.Release()
	medium.Release()
	oversized.Release()
}

func TestRetainDelaysRelease(t *testing.T) {
	p := New(time.Minute)
	b := p.Get(128)
	b.Retain()
	b.Release()
	if len(b.Bytes()) != 128 {
		t.Fatalf("buffer should still be valid after one of two releases")
	}
	b.Release()
}

func TestStatsTrackGetsAndPuts(t *testing.T) {
	p := New(time.Minute)
	b := p.Get(64)
	b.Release()
	stats := p.Stats()
	if stats.Gets != 1 || stats.Puts != 1 {
		t.Errorf("expected 1 get and 1 put, got %+v", stats)
	}
}
