package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Region is a contiguous chunk of PCM with its format. Regions back detected
// events and whole-stream captures.
type Region struct {
	data   []byte
	format Format
}

// NewRegion creates a region over data, which must align to whole samples.
func NewRegion(data []byte, format Format) (Region, error) {
	if err := format.Validate(); err != nil {
		return Region{}, err
	}
	if len(data)%format.FrameSize() != 0 {
		return Region{}, fmt.Errorf("audio: %d region bytes do not align to %d-byte samples", len(data), format.FrameSize())
	}
	return Region{data: data, format: format}, nil
}

// Bytes returns the raw PCM of the region.
func (r Region) Bytes() []byte { return r.data }

// Format returns the region's PCM format.
func (r Region) Format() Format { return r.format }

// Samples returns the number of samples (across all channels counted once).
func (r Region) Samples() int { return len(r.data) / r.format.FrameSize() }

// Duration returns the region's length in seconds.
func (r Region) Duration() float64 {
	return float64(r.Samples()) / float64(r.format.SamplingRate)
}

// Save writes the region to path, guessing the container from the file
// extension: ".wav"/".wave" produce a WAV file, anything else headerless
// PCM.
func (r Region) Save(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return r.SaveWAV(path)
	default:
		return r.SaveRaw(path)
	}
}

// SaveWAV writes the region as a PCM WAV file.
func (r Region) SaveWAV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create %q: %w", path, err)
	}

	enc := wav.NewEncoder(f, r.format.SamplingRate, r.format.SampleWidth*8, r.format.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: r.format.Channels,
			SampleRate:  r.format.SamplingRate,
		},
		Data:           decodePCM(r.data, r.format.SampleWidth),
		SourceBitDepth: r.format.SampleWidth * 8,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("audio: encode %q: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("audio: finalise %q: %w", path, err)
	}
	return f.Close()
}

// SaveRaw writes the region as headerless PCM.
func (r Region) SaveRaw(path string) error {
	if err := os.WriteFile(path, r.data, 0o644); err != nil {
		return fmt.Errorf("audio: write %q: %w", path, err)
	}
	return nil
}

// Detection is a finalized audio event: its region plus its position on the
// stream's frame and time axes. Start is the first window's offset
// (StartFrame times the hop duration); End is Start plus the payload
// duration. With overlapping windows the payload repeats the shared samples,
// so End lies past the end of the last window.
type Detection struct {
	Region

	// StartFrame and EndFrame are the zero-based indices of the first and
	// last analysis window of the event.
	StartFrame int
	EndFrame   int

	// Start and End are the event boundaries in seconds from stream start.
	Start float64
	End   float64
}
