// Package bufpool provides a size-tiered, reference-counted byte buffer
// pool for frame data, with a background sweep that forgets check-in
// timestamps older than the maximum age and counts them as evicted. The
// sweep does not withdraw buffers from the tiers, and Get does not check a
// recycled buffer's age.
package bufpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	smallTierBytes  = 64 * 1024
	mediumTierBytes = 192 * 1024
	largeTierBytes  = 384 * 1024

	// DefaultMaxBufferAge is how long a check-in timestamp is kept before
	// the sweep drops it and counts the buffer in Stats.Evicted.
	DefaultMaxBufferAge = 30 * time.Second
)

type tier struct {
	capacity int
	pool     sync.Pool
}

// Pool hands out []byte buffers sized to the nearest tier and recycles
// them through sync.Pool once their refcount reaches zero.
type Pool struct {
	tiers       [3]*tier
	maxAge      time.Duration
	mu          sync.Mutex
	outstanding map[*Buffer]time.Time

	gets    atomic.Int64
	puts    atomic.Int64
	evicted atomic.Int64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Pool with the standard small/medium/large tiers.
func New(maxAge time.Duration) *Pool {
	if maxAge <= 0 {
		maxAge = DefaultMaxBufferAge
	}
	p := &Pool{
		maxAge:      maxAge,
		outstanding: make(map[*Buffer]time.Time),
		stopCh:      make(chan struct{}),
	}
	p.tiers[0] = &tier{capacity: smallTierBytes}
	p.tiers[1] = &tier{capacity: mediumTierBytes}
	p.tiers[2] = &tier{capacity: largeTierBytes}
	for _, t := range p.tiers {
		t := t
		t.pool.New = func() interface{} {
			return make([]byte, 0, t.capacity)
		}
	}
	return p
}

// Start launches the background age-sweep. Cancelling ctx stops it.
func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.sweepLoop(ctx)
}

// Stop halts the background sweep and waits for it to exit.
func (p *Pool) Stop() {
	select {
	case <-p.stopCh:
		return
	default:
		close(p.stopCh)
	}
	p.wg.Wait()
}

func (p *Pool) sweepLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.maxAge / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *Pool) sweep() {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for buf, checkedInAt := range p.outstanding {
		if now.Sub(checkedInAt) > p.maxAge {
			delete(p.outstanding, buf)
			p.evicted.Add(1)
			// Only the timestamp is dropped: the backing array went back
			// to its tier's sync.Pool at Release and Get can still reuse it.
		}
	}
}

func (p *Pool) tierFor(size int) *tier {
	for _, t := range p.tiers {
		if size <= t.capacity {
			return t
		}
	}
	return nil
}

// Buffer is a reference-counted frame buffer. Retain/Release manage its
// lifetime; once the count drops to zero the backing array returns to its
// tier's sync.Pool (unless it was oversized, in which case it is dropped).
type Buffer struct {
	pool  *Pool
	t     *tier
	data  []byte
	refs  atomic.Int32
}

// Get returns a Buffer with length n, drawn from the smallest tier that
// fits, or a one-off oversized allocation if n exceeds every tier.
func (p *Pool) Get(n int) *Buffer {
	p.gets.Add(1)
	t := p.tierFor(n)
	b := &Buffer{pool: p, t: t}
	if t == nil {
		b.data = make([]byte, n)
		b.refs.Store(1)
		return b
	}
	raw := t.pool.Get().([]byte)
	if cap(raw) < n {
		raw = make([]byte, 0, n)
	}
	b.data = raw[:n]
	b.refs.Store(1)
	return b
}

// Bytes returns the buffer's backing slice.
func (b *Buffer) Bytes() []byte { return b.data }

// Retain increments the reference count; pair with Release.
func (b *Buffer) Retain() {
	b.refs.Add(1)
}

// Release decrements the reference count. At zero the buffer is handed
// back to its tier (recording a checked-in timestamp for the age sweep).
func (b *Buffer) Release() {
	if b.refs.Add(-1) > 0 {
		return
	}
	if b.t == nil {
		return
	}
	b.pool.puts.Add(1)
	b.pool.mu.Lock()
	b.pool.outstanding[b] = time.Now()
	b.pool.mu.Unlock()
	b.t.pool.Put(b.data[:0])
}

// Stats reports cumulative pool activity for metrics export.
type Stats struct {
	Gets    int64
	Puts    int64
	Evicted int64
}

func (p *Pool) Stats() Stats {
	return Stats{Gets: p.gets.Load(), Puts: p.puts.Load(), Evicted: p.evicted.Load()}
}
