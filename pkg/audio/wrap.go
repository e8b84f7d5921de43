package audio

import (
	"fmt"
	"io"
	"math"
)

// Recorder wraps a source and captures every byte read from it. Rewind
// replays the capture from memory and then continues reading (and caching)
// from the wrapped source, which makes any source rewindable at the cost of
// keeping the stream in memory.
type Recorder struct {
	src   Source
	cache []byte
	pos   int // replay position; == len(cache) when reading live
}

// NewRecorder wraps src in a recording, rewindable source.
func NewRecorder(src Source) *Recorder {
	return &Recorder{src: src}
}

// Read serves from the replay cache first, then from the wrapped source.
func (r *Recorder) Read(n int) ([]byte, error) {
	if r.pos < len(r.cache) {
		end := r.pos + n*r.src.Format().FrameSize()
		if end > len(r.cache) {
			end = len(r.cache)
		}
		chunk := r.cache[r.pos:end]
		r.pos = end
		return chunk, nil
	}
	chunk, err := r.src.Read(n)
	if len(chunk) > 0 {
		r.cache = append(r.cache, chunk...)
		r.pos = len(r.cache)
	}
	return chunk, err
}

// Format returns the wrapped source's PCM format.
func (r *Recorder) Format() Format { return r.src.Format() }

// Rewind restarts reading from the beginning of the capture.
func (r *Recorder) Rewind() error {
	r.pos = 0
	return nil
}

// Data returns the bytes captured so far, byte-identical to what the wrapped
// source produced.
func (r *Recorder) Data() []byte { return r.cache }

// Close closes the wrapped source if it is closeable.
func (r *Recorder) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var (
	_ Source   = (*Recorder)(nil)
	_ Rewinder = (*Recorder)(nil)
)

// Limiter wraps a source and caps the total amount of data read from it,
// typically to bound how long a live microphone is captured.
type Limiter struct {
	src       Source
	max       int // samples
	remaining int
}

// NewLimiter caps src at maxRead seconds of audio.
func NewLimiter(src Source, maxRead float64) (*Limiter, error) {
	if maxRead <= 0 {
		return nil, fmt.Errorf("audio: max read must be > 0, given: %g", maxRead)
	}
	maxSamples := int(math.Round(maxRead * float64(src.Format().SamplingRate)))
	return &Limiter{src: src, max: maxSamples, remaining: maxSamples}, nil
}

// Read returns up to n samples, never exceeding the configured total. Once
// the budget is spent it returns [io.EOF].
func (l *Limiter) Read(n int) ([]byte, error) {
	if l.remaining <= 0 {
		return nil, io.EOF
	}
	if n > l.remaining {
		n = l.remaining
	}
	chunk, err := l.src.Read(n)
	l.remaining -= len(chunk) / l.src.Format().FrameSize()
	return chunk, err
}

// Format returns the wrapped source's PCM format.
func (l *Limiter) Format() Format { return l.src.Format() }

// Rewind rewinds the wrapped source and restores the read budget.
func (l *Limiter) Rewind() error {
	if err := Rewind(l.src); err != nil {
		return err
	}
	l.remaining = l.max
	return nil
}

// Close closes the wrapped source if it is closeable.
func (l *Limiter) Close() error {
	if c, ok := l.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ Source = (*Limiter)(nil)
