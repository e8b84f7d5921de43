// Package tokenizer implements a bounded-memory online event tokenizer.
//
// A [Tokenizer] consumes a stream of frames in order, classifies each frame
// with a [Validator], and emits contiguous runs of frames ("events") that
// satisfy configurable duration and silence-tolerance constraints. Frames can
// be anything a binary validator is defined on: PCM analysis windows in the
// audio case, single symbols for symbolic streams.
//
// The tokenizer is a pure push-driven state machine. [Tokenizer.Process] is
// non-blocking and does no I/O; the pull drivers [Tokenizer.Tokenize] and
// [Tokenizer.TokenizeFunc] alternate source reads with Process steps and
// flush on end of stream. At most [Config.MaxLength] frames are buffered at
// any moment.
//
// A Tokenizer instance is owned by one driver; concurrent use is not
// supported.
package tokenizer

import (
	"errors"
	"fmt"
	"io"
)

// Mode is a bitmask of tokenization mode flags.
type Mode uint8

const (
	// StrictMinLength rejects an event shorter than MinLength even when it
	// is the immediate continuation of an event that was force-closed on
	// reaching MaxLength.
	StrictMinLength Mode = 1 << iota

	// DropTrailingSilence removes tolerated trailing non-valid frames from
	// an event before delivery, unless the event was truncated on reaching
	// MaxLength.
	DropTrailingSilence
)

// ErrConfig is wrapped by all configuration validation errors returned
// from [New].
var ErrConfig = errors.New("tokenizer: invalid configuration")

// Config holds the tokenization constraints. It is immutable for one
// tokenization run and validated once by [New].
type Config struct {
	// MinLength is the minimum number of frames of a delivered event,
	// counting tolerated non-valid frames. Must be >= 1.
	MinLength int

	// MaxLength is the maximum number of frames of a delivered event. An
	// event reaching this length is forcibly closed. Must be >= MinLength.
	MaxLength int

	// MaxContinuousSilence is the maximum number of consecutive non-valid
	// frames tolerated inside a confirmed event. Must be >= 0 and
	// < MaxLength.
	MaxContinuousSilence int

	// InitMin is the number of valid frames that must be gathered before an
	// event candidate is confirmed. Zero means a single valid frame
	// confirms immediately.
	InitMin int

	// InitMaxSilence is the maximum number of consecutive non-valid frames
	// tolerated while a candidate has fewer than InitMin valid frames.
	InitMaxSilence int

	// Mode combines StrictMinLength and DropTrailingSilence flags.
	Mode Mode
}

func (c Config) validate() error {
	var errs []error
	if c.MaxLength <= 0 {
		errs = append(errs, fmt.Errorf("max_length must be > 0, given: %d", c.MaxLength))
	}
	if c.MinLength <= 0 || c.MinLength > c.MaxLength {
		errs = append(errs, fmt.Errorf("min_length must be > 0 and <= max_length, given: %d", c.MinLength))
	}
	if c.MaxContinuousSilence < 0 || c.MaxContinuousSilence >= c.MaxLength {
		errs = append(errs, fmt.Errorf("max_continuous_silence must be >= 0 and < max_length, given: %d", c.MaxContinuousSilence))
	}
	if c.InitMin < 0 || c.InitMin >= c.MaxLength {
		errs = append(errs, fmt.Errorf("init_min must be >= 0 and < max_length, given: %d", c.InitMin))
	}
	if c.InitMaxSilence < 0 {
		errs = append(errs, fmt.Errorf("init_max_silence must be >= 0, given: %d", c.InitMaxSilence))
	}
	if c.Mode&^(StrictMinLength|DropTrailingSilence) != 0 {
		errs = append(errs, fmt.Errorf("mode has unknown bits set: %#x", uint8(c.Mode)))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
	}
	return nil
}

// Event is a finalized detection: the frame payloads in original order
// (including tolerated internal and retained trailing non-valid frames) and
// the zero-based indices of the first and last included frame.
type Event[T any] struct {
	Frames []T
	Start  int
	End    int
}

// Len returns the number of frames in the event.
func (e Event[T]) Len() int { return len(e.Frames) }

// status is the tokenizer automaton state.
type status uint8

const (
	// statusIdle: no event in progress; non-valid frames are discarded.
	statusIdle status = iota

	// statusPossibleStart: a candidate event is accumulating but has not yet
	// gathered InitMin valid frames.
	statusPossibleStart

	// statusActive: a confirmed event is in progress; trailing counts the
	// run of non-valid frames at its tail.
	statusActive
)

// Tokenizer is the stream tokenizer state machine. Create instances with
// [New]; the zero value is not usable.
type Tokenizer[T any] struct {
	isValid func(T) bool
	cfg     Config

	status     status
	frames     []T
	start      int // index of the first frame in frames
	current    int // index of the most recently processed frame
	validCount int // valid frames gathered since the candidate opened
	trailing   int // consecutive non-valid frames at the tail of frames

	// contiguous is set when the previous delivery was a forced close on
	// MaxLength; it exempts the immediate continuation from the MinLength
	// floor unless StrictMinLength is set.
	contiguous bool
}

// New creates a tokenizer for the given validator and configuration.
// It returns an error wrapping [ErrConfig] if any constraint is violated;
// there is no partial construction.
func New[T any](v Validator[T], cfg Config) (*Tokenizer[T], error) {
	if v == nil {
		return nil, fmt.Errorf("%w: validator must not be nil", ErrConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	t := &Tokenizer[T]{isValid: v.IsValid, cfg: cfg}
	t.Reset()
	return t, nil
}

// Config returns the configuration the tokenizer was created with.
func (t *Tokenizer[T]) Config() Config { return t.cfg }

// Reset restores the tokenizer to its initial state, discarding any event in
// progress. It is called automatically at the start of each Tokenize run.
func (t *Tokenizer[T]) Reset() {
	t.status = statusIdle
	t.frames = nil
	t.current = -1
	t.validCount = 0
	t.trailing = 0
	t.contiguous = false
}

// Process feeds the next frame of the stream into the state machine and
// returns the event finalized by this frame, if any. Frames must be fed in
// stream order; the tokenizer assigns each frame the next zero-based index.
func (t *Tokenizer[T]) Process(frame T) (Event[T], bool) {
	t.current++
	valid := t.isValid(frame)

	switch t.status {
	case statusIdle:
		if !valid {
			break
		}
		t.start = t.current
		t.validCount = 1
		t.trailing = 0
		t.frames = append(t.frames, frame)
		if t.validCount >= t.cfg.InitMin {
			t.status = statusActive
			if len(t.frames) >= t.cfg.MaxLength {
				return t.close(true)
			}
		} else {
			t.status = statusPossibleStart
		}

	case statusPossibleStart:
		if valid {
			t.trailing = 0
			t.validCount++
			t.frames = append(t.frames, frame)
			if t.validCount >= t.cfg.InitMin {
				t.status = statusActive
				if len(t.frames) >= t.cfg.MaxLength {
					return t.close(true)
				}
			} else if len(t.frames) >= t.cfg.MaxLength {
				// Length cap reached before confirmation: the candidate is
				// abandoned without delivery.
				t.frames = nil
				t.status = statusIdle
			}
			break
		}
		t.trailing++
		if t.trailing > t.cfg.InitMaxSilence || len(t.frames)+1 >= t.cfg.MaxLength {
			// Confirmation failed before InitMin valid frames: the
			// candidate is abandoned without delivery.
			t.frames = nil
			t.status = statusIdle
		} else {
			t.frames = append(t.frames, frame)
		}

	case statusActive:
		switch {
		case valid:
			t.trailing = 0
			t.frames = append(t.frames, frame)
			if len(t.frames) >= t.cfg.MaxLength {
				return t.close(true)
			}
		case t.cfg.MaxContinuousSilence <= 0:
			t.status = statusIdle
			return t.close(false)
		case t.trailing >= t.cfg.MaxContinuousSilence:
			// Silence overflow. The overflowing frame is not appended, so
			// the event retains at most MaxContinuousSilence trailing
			// non-valid frames.
			t.status = statusIdle
			if t.trailing < len(t.frames) {
				return t.close(false)
			}
			t.frames = nil
			t.trailing = 0
			t.contiguous = false
		default:
			t.trailing++
			t.frames = append(t.frames, frame)
			if len(t.frames) >= t.cfg.MaxLength {
				// Keep trailing as-is: the total run of non-valid frames
				// must stay known across the forced close.
				return t.close(true)
			}
		}
	}
	return Event[T]{}, false
}

// Flush signals end of stream and returns the final event, if any. Flush is
// idempotent: calling it again with no intervening Process yields no event.
func (t *Tokenizer[T]) Flush() (Event[T], bool) {
	t.current++
	if t.status == statusActive && len(t.frames) > 0 && len(t.frames) > t.trailing {
		t.status = statusIdle
		return t.close(false)
	}
	t.status = statusIdle
	t.frames = nil
	t.trailing = 0
	return Event[T]{}, false
}

// close finalizes the in-progress event. truncated indicates a forced close
// on reaching MaxLength, in which case trailing silence is retained and the
// next event may start immediately at the following frame.
func (t *Tokenizer[T]) close(truncated bool) (Event[T], bool) {
	if !truncated && t.cfg.Mode&DropTrailingSilence != 0 && t.trailing > 0 {
		t.frames = t.frames[:len(t.frames)-t.trailing]
	}

	meetsFloor := len(t.frames) >= t.cfg.MinLength
	exempt := len(t.frames) > 0 && t.cfg.Mode&StrictMinLength == 0 && t.contiguous
	if !meetsFloor && !exempt {
		t.frames = nil
		t.contiguous = false
		return Event[T]{}, false
	}

	ev := Event[T]{Frames: t.frames, Start: t.start, End: t.start + len(t.frames) - 1}
	t.frames = nil
	if truncated {
		t.start = t.current + 1
		t.contiguous = true
	} else {
		t.contiguous = false
	}
	return ev, true
}

// Tokenize reads src to exhaustion and returns all delivered events in
// start order. On a source read error other than [io.EOF] the tokenizer
// flushes, then the error is returned together with the events delivered up
// to the failing frame.
func (t *Tokenizer[T]) Tokenize(src Source[T]) ([]Event[T], error) {
	var events []Event[T]
	err := t.TokenizeFunc(src, func(ev Event[T]) {
		events = append(events, ev)
	})
	return events, err
}

// TokenizeFunc reads src to exhaustion and invokes emit synchronously for
// each delivered event, in emission order, buffering no more than the
// in-progress event. The callback must not read from src.
func (t *Tokenizer[T]) TokenizeFunc(src Source[T], emit func(Event[T])) error {
	t.Reset()
	for {
		frame, err := src.Read()
		if err != nil {
			if ev, ok := t.Flush(); ok {
				emit(ev)
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if ev, ok := t.Process(frame); ok {
			emit(ev)
		}
	}
}
