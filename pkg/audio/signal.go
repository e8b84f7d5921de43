package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// epsilon is the floor applied to the RMS before taking the logarithm, so
// that an all-zero window yields a finite energy instead of -Inf.
const epsilon = 1e-10

// ToFloat64 decodes little-endian signed PCM of the given sample width into
// float64 samples, channels still interleaved. Accumulating in float64 keeps
// the later sum of squares exact even for large windows of 16-bit samples.
func ToFloat64(data []byte, sampleWidth int) ([]float64, error) {
	switch sampleWidth {
	case 1, 2, 4:
	default:
		return nil, fmt.Errorf("audio: sample width must be 1, 2 or 4, given: %d", sampleWidth)
	}
	if len(data)%sampleWidth != 0 {
		return nil, fmt.Errorf("audio: %d data bytes do not align to sample width %d", len(data), sampleWidth)
	}

	out := make([]float64, len(data)/sampleWidth)
	switch sampleWidth {
	case 1:
		for i, b := range data {
			out[i] = float64(int8(b))
		}
	case 2:
		for i := range out {
			out[i] = float64(int16(binary.LittleEndian.Uint16(data[i*2:])))
		}
	case 4:
		for i := range out {
			out[i] = float64(int32(binary.LittleEndian.Uint32(data[i*4:])))
		}
	}
	return out, nil
}

// Energy returns the log mean-square energy of samples:
//
//	energy = 20·log10(max(sqrt(Σ xᵢ²/N), ε))
//
// which equals 10·log10 of the mean square, floored to stay finite on silent
// windows.
func Energy(samples []float64) float64 {
	if len(samples) == 0 {
		return 20 * math.Log10(epsilon)
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms < epsilon {
		rms = epsilon
	}
	return 20 * math.Log10(rms)
}

// ChannelMode selects how multi-channel frames are reduced to a single
// scalar-per-sample channel before validation.
type ChannelMode int

const (
	// ChannelAny validates each channel independently; a frame is valid if
	// any channel's verdict is.
	ChannelAny ChannelMode = iota

	// ChannelMix averages all channels per sample ("mix"/"avg").
	ChannelMix

	// ChannelIndex uses one configured channel and ignores the others.
	ChannelIndex
)

// ChannelSelector extracts per-channel or reduced sample data from
// interleaved PCM frames. The reduction policy lives at the boundary between
// source and validator; the tokenizer never sees channels.
type ChannelSelector struct {
	mode   ChannelMode
	index  int
	format Format
}

// NewChannelSelector creates a selector for frames in the given format.
// index is only meaningful for [ChannelIndex]; negative values count from
// the last channel.
func NewChannelSelector(format Format, mode ChannelMode, index int) (*ChannelSelector, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if mode == ChannelIndex {
		if index < 0 {
			index += format.Channels
		}
		if index < 0 || index >= format.Channels {
			return nil, fmt.Errorf("audio: channel index must be >= -channels and < channels, given: %d", index)
		}
	}
	return &ChannelSelector{mode: mode, index: index, format: format}, nil
}

// Split decodes data and returns one sample slice per channel. For
// mono input it returns a single slice.
func (s *ChannelSelector) Split(data []byte) ([][]float64, error) {
	all, err := ToFloat64(data, s.format.SampleWidth)
	if err != nil {
		return nil, err
	}
	ch := s.format.Channels
	if ch == 1 {
		return [][]float64{all}, nil
	}
	out := make([][]float64, ch)
	n := len(all) / ch
	for c := range out {
		out[c] = make([]float64, n)
	}
	for i, v := range all {
		out[i%ch][i/ch] = v
	}
	return out, nil
}

// Select returns the reduced single channel according to the selector's
// mode. For [ChannelAny] on multi-channel input it returns an error (mono
// input yields its single channel); use [ChannelSelector.Split]
// and aggregate per-channel results instead.
func (s *ChannelSelector) Select(data []byte) ([]float64, error) {
	if s.mode == ChannelAny && s.format.Channels > 1 {
		return nil, fmt.Errorf("audio: ChannelAny has no single reduced channel")
	}
	channels, err := s.Split(data)
	if err != nil {
		return nil, err
	}
	if len(channels) == 1 {
		return channels[0], nil
	}
	if s.mode == ChannelIndex {
		return channels[s.index], nil
	}
	// Mix: arithmetic mean across channels per sample.
	mixed := make([]float64, len(channels[0]))
	for _, ch := range channels {
		for i, v := range ch {
			mixed[i] += v
		}
	}
	for i := range mixed {
		mixed[i] /= float64(len(channels))
	}
	return mixed, nil
}

// Mode returns the selector's channel mode.
func (s *ChannelSelector) Mode() ChannelMode { return s.mode }
