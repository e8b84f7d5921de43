package audio_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/earshot/pkg/audio"
)

// writeTestWAV saves a known 16-bit mono region and returns its path.
func writeTestWAV(t *testing.T, data []byte) string {
	t.Helper()
	region, err := audio.NewRegion(data, testFormat)
	if err != nil {
		t.Fatalf("NewRegion: %v", err)
	}
	path := filepath.Join(t.TempDir(), "test.wav")
	if err := region.SaveWAV(path); err != nil {
		t.Fatalf("SaveWAV: %v", err)
	}
	return path
}

func TestWaveFileSource_StreamsPCM(t *testing.T) {
	t.Parallel()

	data := pcm16(constant(1234, 150)...)
	src, err := audio.NewWaveFileSource(writeTestWAV(t, data))
	if err != nil {
		t.Fatalf("NewWaveFileSource: %v", err)
	}
	defer src.Close()

	if src.Format() != testFormat {
		t.Fatalf("Format = %+v, want %+v", src.Format(), testFormat)
	}

	var all []byte
	for {
		chunk, err := src.Read(64)
		all = append(all, chunk...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if string(all) != string(data) {
		t.Errorf("streamed PCM (%d bytes) differs from the encoded data (%d bytes)", len(all), len(data))
	}
}

func TestWaveFileSource_Rewind(t *testing.T) {
	t.Parallel()

	data := pcm16(constant(99, 50)...)
	src, err := audio.NewWaveFileSource(writeTestWAV(t, data))
	if err != nil {
		t.Fatalf("NewWaveFileSource: %v", err)
	}
	defer src.Close()

	first, err := src.Read(10)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := src.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	again, err := src.Read(10)
	if err != nil {
		t.Fatalf("Read after rewind: %v", err)
	}
	if string(first) != string(again) {
		t.Error("rewound read differs from the first read")
	}
}

func TestNewWaveFileSource_RejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "noise.wav")
	if err := os.WriteFile(path, []byte("definitely not RIFF"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := audio.NewWaveFileSource(path); err == nil {
		t.Error("expected error for a non-WAV file")
	}
}
