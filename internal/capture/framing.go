package capture

import (
	"bytes"
	"fmt"
	"io"

	"github.com/glimpser/glimpser-go/internal/bufpool"
	"github.com/glimpser/glimpser-go/internal/model"
	"log/slog"
)

const (
	boundaryReadSize = 16384

	maxBufferSize          = 10 * 1024 * 1024
	bufferWarningThreshold = 5 * 1024 * 1024
	maxBufferOverflows     = 3
	minProgressThreshold   = 1024
)

var jpegStart = []byte{0xFF, 0xD8}
var jpegEnd = []byte{0xFF, 0xD9}

// Framer demultiplexes a continuous MJPEG byte stream into individual
// JPEG frames, recovering from unbounded buffer growth by dropping
// stale data instead of blocking or crashing.
type Framer struct {
	sourceID string
	pool     *bufpool.Pool
	buf      []byte
	peak     int
	overflows int
	sequence  uint64
}

// NewFramer builds a Framer for sourceID, drawing frame buffers from pool.
func NewFramer(sourceID string, pool *bufpool.Pool) *Framer {
	return &Framer{sourceID: sourceID, pool: pool}
}

// ReadFrames reads from r until it is exhausted or ctx-equivalent caller
// stops calling, invoking emit for each complete JPEG frame found. It
// returns apperrors-wrapped ErrBufferOverflow if the stream is marked
// failed after repeated overflow recovery.
func (f *Framer) ReadFrames(r io.Reader, emit func(*model.Frame)) error {
	chunk := make([]byte, boundaryReadSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			f.buf = append(f.buf, chunk[:n]...)
			if overflowErr := f.checkOverflow(); overflowErr != nil {
				return overflowErr
			}
			f.drainFrames(emit)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (f *Framer) drainFrames(emit func(*model.Frame)) {
	for {
		start := bytes.Index(f.buf, jpegStart)
		if start < 0 {
			return
		}
		end := bytes.Index(f.buf[start+2:], jpegEnd)
		if end < 0 {
			if start > 0 {
				f.buf = f.buf[start:]
			}
			return
		}
		end += start + 2 + 2 // include the 0xFFD9 marker itself

		frameLen := end - start
		b := f.pool.Get(frameLen)
		copy(b.Bytes(), f.buf[start:end])
		f.sequence++
		emit(model.NewFrame(f.sourceID, f.sequence, b.Bytes(), b.Release))

		f.buf = f.buf[end:]
	}
}

// checkOverflow implements buffer-overflow protection: warn past 5MiB,
// at 10MiB find the most recent JPEG start marker and drop everything
// before it, and after three such recoveries mark the stream failed.
func (f *Framer) checkOverflow() error {
	size := len(f.buf)
	if size > f.peak {
		f.peak = size
	}

	if size > bufferWarningThreshold && size <= maxBufferSize {
		slog.Warn("frame buffer approaching maximum threshold",
			"source_id", f.sourceID, "buffer_size", size, "threshold", bufferWarningThreshold, "peak_size", f.peak)
		return nil
	}

	if size <= maxBufferSize {
		return nil
	}

	f.overflows++
	slog.Error("buffer overflow detected, recovering",
		"source_id", f.sourceID, "buffer_size", size, "max_size", maxBufferSize,
		"overflow_count", f.overflows, "peak_size", f.peak)

	lastStart := lastIndex(f.buf, jpegStart)
	switch {
	case lastStart < 0:
		dropped := len(f.buf)
		f.buf = f.buf[:0]
		slog.Error("no jpeg markers found, cleared buffer", "source_id", f.sourceID, "bytes_dropped", dropped)
	case lastStart < minProgressThreshold && size-lastStart > maxBufferSize:
		dropped := len(f.buf)
		f.buf = f.buf[:0]
		slog.Error("incomplete jpeg frame exceeds max buffer size, cleared buffer",
			"source_id", f.sourceID, "bytes_dropped", dropped, "jpeg_start_pos", lastStart)
	default:
		f.buf = f.buf[lastStart:]
		slog.Warn("dropped stale buffer data, retained from most recent jpeg start",
			"source_id", f.sourceID, "bytes_dropped", lastStart, "buffer_remaining", len(f.buf))
	}

	if f.overflows >= maxBufferOverflows {
		return fmt.Errorf("%s: %d buffer overflows, stream likely corrupted: %w", f.sourceID, f.overflows, errBufferOverflowLimit)
	}
	return nil
}

func lastIndex(buf, marker []byte) int {
	last := -1
	for i := 0; ; {
		idx := bytes.Index(buf[i:], marker)
		if idx < 0 {
			return last
		}
		last = i + idx
		i = last + 1
	}
}
