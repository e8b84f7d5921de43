package audio_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/MrWong99/earshot/pkg/audio"
)

// readerOf returns a plain, non-seekable reader over s.
func readerOf(s string) io.Reader { return strings.NewReader(s) }

// mustBuffer builds a BufferSource over mono 8-bit PCM so that each byte is
// one sample and test data stays readable.
func mustBuffer(t *testing.T, data []byte) *audio.BufferSource {
	t.Helper()
	src, err := audio.NewBufferSource(data, audio.Format{SamplingRate: 10, SampleWidth: 1, Channels: 1})
	if err != nil {
		t.Fatalf("NewBufferSource: %v", err)
	}
	return src
}

func readAllFrames(t *testing.T, r *audio.FrameReader) [][]byte {
	t.Helper()
	var frames [][]byte
	for {
		frame, err := r.Read()
		if errors.Is(err, io.EOF) {
			return frames
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		frames = append(frames, frame)
	}
}

func TestFrameReader_NoOverlap(t *testing.T) {
	t.Parallel()

	r, err := audio.NewFrameReader(mustBuffer(t, []byte("abcdefgh")), 3, 0)
	if err != nil {
		t.Fatalf("NewFrameReader: %v", err)
	}
	frames := readAllFrames(t, r)

	want := []string{"abc", "def"}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d (partial trailing window must not be exposed)", len(frames), len(want))
	}
	for i, w := range want {
		if string(frames[i]) != w {
			t.Errorf("frame %d = %q, want %q", i, frames[i], w)
		}
	}
}

func TestFrameReader_Overlap(t *testing.T) {
	t.Parallel()

	r, err := audio.NewFrameReader(mustBuffer(t, []byte("abcdefg")), 4, 2)
	if err != nil {
		t.Fatalf("NewFrameReader: %v", err)
	}
	frames := readAllFrames(t, r)

	// Window k covers samples [2k, 2k+4).
	want := []string{"abcd", "cdef"}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i, w := range want {
		if string(frames[i]) != w {
			t.Errorf("frame %d = %q, want %q", i, frames[i], w)
		}
	}
}

func TestFrameReader_FramesAreIndependent(t *testing.T) {
	t.Parallel()

	r, err := audio.NewFrameReader(mustBuffer(t, []byte("abcdef")), 2, 1)
	if err != nil {
		t.Fatalf("NewFrameReader: %v", err)
	}
	frames := readAllFrames(t, r)
	// Retained frames must not change as later frames are read.
	want := []string{"ab", "bc", "cd", "de", "ef"}
	for i, w := range want {
		if string(frames[i]) != w {
			t.Errorf("frame %d = %q, want %q", i, frames[i], w)
		}
	}
}

func TestFrameReader_EOFIsSticky(t *testing.T) {
	t.Parallel()

	r, err := audio.NewFrameReader(mustBuffer(t, []byte("ab")), 2, 0)
	if err != nil {
		t.Fatalf("NewFrameReader: %v", err)
	}
	if _, err := r.Read(); err != nil {
		t.Fatalf("first Read: %v", err)
	}
	for range 3 {
		if _, err := r.Read(); !errors.Is(err, io.EOF) {
			t.Fatalf("Read after exhaustion = %v, want io.EOF", err)
		}
	}
}

func TestFrameReader_Rewind(t *testing.T) {
	t.Parallel()

	r, err := audio.NewFrameReader(mustBuffer(t, []byte("abcdef")), 2, 0)
	if err != nil {
		t.Fatalf("NewFrameReader: %v", err)
	}
	first := readAllFrames(t, r)
	if err := r.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	second := readAllFrames(t, r)
	if len(first) != len(second) {
		t.Fatalf("rewound read yielded %d frames, first read yielded %d", len(second), len(first))
	}
	for i := range first {
		if string(first[i]) != string(second[i]) {
			t.Errorf("frame %d differs after rewind: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestFrameReader_DurConstructor(t *testing.T) {
	t.Parallel()

	src, err := audio.NewBufferSource(make([]byte, 3200), audio.Format{SamplingRate: 16000, SampleWidth: 2, Channels: 1})
	if err != nil {
		t.Fatalf("NewBufferSource: %v", err)
	}
	r, err := audio.NewFrameReaderDur(src, 0.05, 0.02)
	if err != nil {
		t.Fatalf("NewFrameReaderDur: %v", err)
	}
	if r.BlockSize() != 800 {
		t.Errorf("BlockSize = %d, want 800", r.BlockSize())
	}
	if r.HopSize() != 320 {
		t.Errorf("HopSize = %d, want 320", r.HopSize())
	}
	if r.BlockDur() != 0.05 {
		t.Errorf("BlockDur = %g, want 0.05", r.BlockDur())
	}
}

func TestFrameReader_InvalidSizes(t *testing.T) {
	t.Parallel()

	src := mustBuffer(t, []byte("abcd"))
	if _, err := audio.NewFrameReader(src, 0, 0); err == nil {
		t.Error("expected error for zero block size")
	}
	if _, err := audio.NewFrameReader(src, 4, 5); err == nil {
		t.Error("expected error for hop size above block size")
	}
	if _, err := audio.NewFrameReader(src, 4, -1); err == nil {
		t.Error("expected error for negative hop size")
	}
}

func TestRecorder_ReplayAndContinue(t *testing.T) {
	t.Parallel()

	rec := audio.NewRecorder(mustBuffer(t, []byte("abcdef")))

	chunk, err := rec.Read(3)
	if err != nil || string(chunk) != "abc" {
		t.Fatalf("first read = (%q, %v), want (abc, nil)", chunk, err)
	}
	if err := rec.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	// Replay the cache, then keep reading live past it.
	var all []byte
	for {
		chunk, err := rec.Read(2)
		all = append(all, chunk...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if string(all) != "abcdef" {
		t.Errorf("replayed stream = %q, want abcdef", all)
	}
	if string(rec.Data()) != "abcdef" {
		t.Errorf("Data() = %q, want the full capture", rec.Data())
	}
}

func TestRecorder_DataIsByteIdentical(t *testing.T) {
	t.Parallel()

	rec := audio.NewRecorder(mustBuffer(t, []byte("abcdefgh")))
	r, err := audio.NewFrameReader(rec, 3, 0)
	if err != nil {
		t.Fatalf("NewFrameReader: %v", err)
	}
	readAllFrames(t, r)
	// The capture covers every byte the source produced, including the
	// partial trailing window the reader never exposed.
	if string(rec.Data()) != "abcdefgh" {
		t.Errorf("Data() = %q, want abcdefgh", rec.Data())
	}
}

func TestLimiter_CapsTotalRead(t *testing.T) {
	t.Parallel()

	// 10 Hz sampling: 0.4 s caps the stream at 4 samples.
	lim, err := audio.NewLimiter(mustBuffer(t, []byte("abcdef")), 0.4)
	if err != nil {
		t.Fatalf("NewLimiter: %v", err)
	}
	var all []byte
	for {
		chunk, err := lim.Read(3)
		all = append(all, chunk...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if string(all) != "abcd" {
		t.Errorf("limited stream = %q, want abcd", all)
	}
}

func TestLimiter_RewindRestoresBudget(t *testing.T) {
	t.Parallel()

	lim, err := audio.NewLimiter(mustBuffer(t, []byte("abcdef")), 0.3)
	if err != nil {
		t.Fatalf("NewLimiter: %v", err)
	}
	if _, err := lim.Read(3); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := lim.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	chunk, err := lim.Read(6)
	if err != nil {
		t.Fatalf("Read after rewind: %v", err)
	}
	if string(chunk) != "abc" {
		t.Errorf("read after rewind = %q, want abc", chunk)
	}
}

func TestRewind_UnsupportedSource(t *testing.T) {
	t.Parallel()

	src, err := audio.NewReaderSource(readerOf("abcd"), audio.Format{SamplingRate: 10, SampleWidth: 1, Channels: 1})
	if err != nil {
		t.Fatalf("NewReaderSource: %v", err)
	}
	if err := audio.Rewind(src); !errors.Is(err, audio.ErrRewind) {
		t.Errorf("Rewind on stream source = %v, want ErrRewind", err)
	}
	// Wrapping in a Recorder makes the same stream rewindable.
	if err := audio.Rewind(audio.NewRecorder(src)); err != nil {
		t.Errorf("Rewind on recorder = %v, want nil", err)
	}
}
