package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WaveFileSource streams PCM out of a WAV file, decoding lazily one chunk a
// time so that files larger than memory can be processed. The format is
// taken from the WAV header. The source is rewindable.
type WaveFileSource struct {
	f      *os.File
	dec    *wav.Decoder
	format Format
}

// NewWaveFileSource opens the WAV file at path and reads its header.
func NewWaveFileSource(path string) (*WaveFileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %q: %w", path, err)
	}
	src := &WaveFileSource{f: f}
	if err := src.reset(); err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// reset rebuilds the decoder from the start of the file and re-validates the
// header.
func (s *WaveFileSource) reset() error {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("audio: seek %q: %w", s.f.Name(), err)
	}
	dec := wav.NewDecoder(s.f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return fmt.Errorf("audio: %q is not a valid WAV file", s.f.Name())
	}
	format := Format{
		SamplingRate: int(dec.SampleRate),
		SampleWidth:  int(dec.BitDepth) / 8,
		Channels:     int(dec.NumChans),
	}
	if err := format.Validate(); err != nil {
		return fmt.Errorf("audio: %q: unsupported format: %w", s.f.Name(), err)
	}
	if err := dec.FwdToPCM(); err != nil {
		return fmt.Errorf("audio: %q: locate PCM data: %w", s.f.Name(), err)
	}
	s.dec = dec
	s.format = format
	return nil
}

// Read decodes up to n samples and returns them as little-endian PCM bytes.
func (s *WaveFileSource) Read(n int) ([]byte, error) {
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: s.format.Channels,
			SampleRate:  s.format.SamplingRate,
		},
		Data:           make([]int, n*s.format.Channels),
		SourceBitDepth: s.format.SampleWidth * 8,
	}
	read, err := s.dec.PCMBuffer(buf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("audio: decode %q: %w", s.f.Name(), err)
	}
	if read == 0 {
		return nil, io.EOF
	}
	// Keep whole samples across all channels.
	read -= read % s.format.Channels
	return encodePCM(buf.Data[:read], s.format.SampleWidth), nil
}

// Format returns the PCM format declared by the WAV header.
func (s *WaveFileSource) Format() Format { return s.format }

// Rewind restarts decoding from the beginning of the PCM data.
func (s *WaveFileSource) Rewind() error { return s.reset() }

// Close closes the underlying file.
func (s *WaveFileSource) Close() error { return s.f.Close() }

var (
	_ Source   = (*WaveFileSource)(nil)
	_ Rewinder = (*WaveFileSource)(nil)
)

// LoadWAV decodes a whole WAV file into a rewindable in-memory source.
func LoadWAV(path string) (*BufferSource, error) {
	src, err := NewWaveFileSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var data []byte
	for {
		chunk, err := src.Read(8192)
		data = append(data, chunk...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return NewBufferSource(data, src.Format())
}

// encodePCM encodes integer samples as little-endian signed PCM of the given
// sample width.
func encodePCM(samples []int, sampleWidth int) []byte {
	out := make([]byte, len(samples)*sampleWidth)
	switch sampleWidth {
	case 1:
		for i, v := range samples {
			out[i] = byte(int8(v))
		}
	case 2:
		for i, v := range samples {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
		}
	case 4:
		for i, v := range samples {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(v)))
		}
	}
	return out
}

// decodePCM decodes little-endian signed PCM bytes into integer samples.
func decodePCM(data []byte, sampleWidth int) []int {
	out := make([]int, len(data)/sampleWidth)
	switch sampleWidth {
	case 1:
		for i := range out {
			out[i] = int(int8(data[i]))
		}
	case 2:
		for i := range out {
			out[i] = int(int16(binary.LittleEndian.Uint16(data[i*2:])))
		}
	case 4:
		for i := range out {
			out[i] = int(int32(binary.LittleEndian.Uint32(data[i*4:])))
		}
	}
	return out
}
