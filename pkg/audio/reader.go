package audio

import (
	"fmt"
	"io"
	"math"

	"github.com/MrWong99/earshot/pkg/tokenizer"
)

// FrameReader slices a PCM [Source] into fixed-length analysis windows of
// BlockSize samples, advancing HopSize samples between consecutive windows.
// With HopSize < BlockSize consecutive windows overlap; the k-th window
// covers samples [k·HopSize, k·HopSize + BlockSize). A trailing stretch
// shorter than BlockSize is never exposed.
//
// FrameReader implements tokenizer.Source[[]byte]; each returned frame is an
// independent copy safe to retain.
type FrameReader struct {
	src   Source
	block int // samples per window
	hop   int // samples between window starts

	carry []byte // trailing block-hop samples of the previous window
	eof   bool
}

// NewFrameReader creates a reader with sizes given in samples. hopSize 0
// defaults to blockSize (no overlap).
func NewFrameReader(src Source, blockSize, hopSize int) (*FrameReader, error) {
	if hopSize == 0 {
		hopSize = blockSize
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("audio: block size must be > 0, given: %d", blockSize)
	}
	if hopSize < 0 || hopSize > blockSize {
		return nil, fmt.Errorf("audio: hop size must be > 0 and <= block size, given: %d", hopSize)
	}
	return &FrameReader{src: src, block: blockSize, hop: hopSize}, nil
}

// NewFrameReaderDur creates a reader with sizes given as durations in
// seconds, converted as samples = round(rate · duration). hopDur 0 defaults
// to blockDur.
func NewFrameReaderDur(src Source, blockDur, hopDur float64) (*FrameReader, error) {
	rate := float64(src.Format().SamplingRate)
	block := int(math.Round(blockDur * rate))
	if block <= 0 {
		return nil, fmt.Errorf("audio: block duration %g s is shorter than one sample at %d Hz", blockDur, src.Format().SamplingRate)
	}
	hop := 0
	if hopDur != 0 {
		hop = int(math.Round(hopDur * rate))
	}
	return NewFrameReader(src, block, hop)
}

// Read returns the next analysis window or [io.EOF] when fewer than
// BlockSize samples remain. Once io.EOF is returned, further calls keep
// returning it.
func (r *FrameReader) Read() ([]byte, error) {
	if r.eof {
		return nil, io.EOF
	}

	frameSize := r.src.Format().FrameSize()
	fresh := r.block
	if r.carry != nil {
		fresh = r.hop
	}

	chunk, err := readFull(r.src, fresh)
	if err != nil && err != io.EOF {
		r.eof = true
		return nil, err
	}
	if len(chunk) < fresh*frameSize {
		// Partial trailing window: never exposed.
		r.eof = true
		return nil, io.EOF
	}

	frame := make([]byte, 0, r.block*frameSize)
	frame = append(frame, r.carry...)
	frame = append(frame, chunk...)

	if r.hop < r.block {
		r.carry = append(r.carry[:0], frame[r.hop*frameSize:]...)
	} else if r.carry == nil {
		// Mark the first window as consumed for the non-overlapping case.
		r.carry = []byte{}
	}
	return frame, nil
}

// BlockSize returns the window length in samples.
func (r *FrameReader) BlockSize() int { return r.block }

// HopSize returns the advance between windows in samples.
func (r *FrameReader) HopSize() int { return r.hop }

// BlockDur returns the window length in seconds.
func (r *FrameReader) BlockDur() float64 {
	return float64(r.block) / float64(r.src.Format().SamplingRate)
}

// HopDur returns the advance between windows in seconds.
func (r *FrameReader) HopDur() float64 {
	return float64(r.hop) / float64(r.src.Format().SamplingRate)
}

// Format returns the wrapped source's PCM format.
func (r *FrameReader) Format() Format { return r.src.Format() }

// Rewind rewinds the wrapped source and resets the framing state. It fails
// with [ErrRewind] when the source cannot rewind.
func (r *FrameReader) Rewind() error {
	if err := Rewind(r.src); err != nil {
		return err
	}
	r.carry = nil
	r.eof = false
	return nil
}

// Close closes the wrapped source if it is closeable.
func (r *FrameReader) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ tokenizer.Source[[]byte] = (*FrameReader)(nil)
