// Package audio provides the audio side of the earshot detection pipeline:
// PCM sources (buffers, raw and WAV files, standard input, microphone),
// recording and read-limiting wrappers, the framing reader that slices a
// stream into fixed-duration analysis windows, signal helpers, and the
// energy-based frame validator.
//
// Raw PCM is always little-endian signed integers of SampleWidth bytes, with
// channels interleaved sample by sample.
package audio

import (
	"errors"
	"fmt"
)

// ErrRewind is returned when Rewind is called on a source that is neither
// seekable nor recording.
var ErrRewind = errors.New("audio: source does not support rewind")

// Format describes the sample layout of a PCM stream.
type Format struct {
	// SamplingRate in Hz (e.g. 16000).
	SamplingRate int

	// SampleWidth is the number of bytes per sample: 1, 2 or 4.
	SampleWidth int

	// Channels is the number of interleaved channels.
	Channels int
}

// FrameSize returns the number of bytes covering one sample across all
// channels.
func (f Format) FrameSize() int { return f.SampleWidth * f.Channels }

// Validate checks that the format is usable.
func (f Format) Validate() error {
	if f.SamplingRate <= 0 {
		return fmt.Errorf("audio: sampling rate must be > 0, given: %d", f.SamplingRate)
	}
	switch f.SampleWidth {
	case 1, 2, 4:
	default:
		return fmt.Errorf("audio: sample width must be 1, 2 or 4, given: %d", f.SampleWidth)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("audio: channels must be > 0, given: %d", f.Channels)
	}
	return nil
}

// Source yields successive chunks of raw PCM from an underlying stream.
//
// Read returns up to n samples (n * Format().FrameSize() bytes) and [io.EOF]
// once the stream is exhausted; further calls keep returning io.EOF. A short
// read does not imply exhaustion.
type Source interface {
	Read(n int) ([]byte, error)
	Format() Format
}

// Rewinder is the optional capability of sources that can be reset to their
// start. Seekable sources rewind in place; a [Recorder] replays its cache.
type Rewinder interface {
	Rewind() error
}

// Rewind rewinds src if it supports the capability and returns [ErrRewind]
// otherwise.
func Rewind(src Source) error {
	if r, ok := src.(Rewinder); ok {
		return r.Rewind()
	}
	return ErrRewind
}

// readFull reads from src until exactly n samples are gathered or the source
// is exhausted. It returns the gathered bytes; short output means end of
// stream. An error other than io.EOF is returned as-is together with the
// bytes read before it.
func readFull(src Source, n int) ([]byte, error) {
	frameSize := src.Format().FrameSize()
	want := n * frameSize
	var out []byte
	for len(out) < want {
		chunk, err := src.Read((want - len(out)) / frameSize)
		out = append(out, chunk...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
