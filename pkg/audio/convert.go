package audio

import (
	"fmt"
	"io"
)

// ConvertingSource adapts a 16-bit PCM source to a target sampling rate and
// channel count before framing, e.g. to feed a validator that only accepts
// mono 16 kHz input. Conversion order: downmix or duplicate channels first,
// then resample with linear interpolation.
type ConvertingSource struct {
	src    Source
	target Format
}

// NewConvertingSource wraps src. Only 16-bit sources and 1- or 2-channel
// layouts are supported; identical formats pass bytes through unchanged.
func NewConvertingSource(src Source, targetRate, targetChannels int) (*ConvertingSource, error) {
	in := src.Format()
	if in.SampleWidth != 2 {
		return nil, fmt.Errorf("audio: conversion requires 16-bit samples, given width %d", in.SampleWidth)
	}
	if in.Channels > 2 || targetChannels > 2 || targetChannels <= 0 {
		return nil, fmt.Errorf("audio: conversion supports mono and stereo only, given %d -> %d channels", in.Channels, targetChannels)
	}
	target := Format{SamplingRate: targetRate, SampleWidth: 2, Channels: targetChannels}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return &ConvertingSource{src: src, target: target}, nil
}

// Read returns up to n converted samples. Reads pull proportionally more or
// fewer source samples so that n stays an upper bound after resampling.
func (c *ConvertingSource) Read(n int) ([]byte, error) {
	in := c.src.Format()
	if in == c.target {
		return c.src.Read(n)
	}

	// Fetch the number of source samples that converts to about n output
	// samples; callers tolerate any chunk size.
	want := int(int64(n) * int64(in.SamplingRate) / int64(c.target.SamplingRate))
	if want < 1 {
		want = 1
	}
	chunk, err := c.src.Read(want)
	if len(chunk) == 0 {
		return nil, err
	}

	pcm := chunk
	if in.Channels == 2 && c.target.Channels == 1 {
		pcm = StereoToMono(pcm)
	} else if in.Channels == 1 && c.target.Channels == 2 {
		pcm = MonoToStereo(pcm)
	}
	if in.SamplingRate != c.target.SamplingRate {
		if c.target.Channels == 1 {
			pcm = ResampleMono16(pcm, in.SamplingRate, c.target.SamplingRate)
		} else {
			pcm = ResampleStereo16(pcm, in.SamplingRate, c.target.SamplingRate)
		}
	}
	if len(pcm) == 0 && err == nil {
		// A tiny chunk can resample to nothing; surface exhaustion only
		// when the wrapped source does.
		return c.Read(n)
	}
	return pcm, err
}

// Format returns the target format.
func (c *ConvertingSource) Format() Format { return c.target }

// Rewind rewinds the wrapped source.
func (c *ConvertingSource) Rewind() error { return Rewind(c.src) }

// Close closes the wrapped source if it is closeable.
func (c *ConvertingSource) Close() error {
	if cl, ok := c.src.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

var _ Source = (*ConvertingSource)(nil)

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
// Input must be little-endian int16 PCM (2 bytes per sample).
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j] = lo
		out[j+1] = hi
		out[j+2] = lo
		out[j+3] = hi
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono
// output. Uses int32 arithmetic to prevent overflow and clamps to int16
// range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		lSample := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		rSample := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (lSample + rSample) / 2

		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. The input must be little-endian int16 samples. If
// srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// ResampleStereo16 resamples 16-bit stereo PCM from srcRate to dstRate using
// linear interpolation. Each stereo frame is 4 bytes (L+R interleaved). If
// srcRate == dstRate, the input is returned unchanged.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 4 {
		return pcm
	}
	srcFrames := len(pcm) / 4
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*4)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		l0 := int16(pcm[srcIdx*4]) | int16(pcm[srcIdx*4+1])<<8
		r0 := int16(pcm[srcIdx*4+2]) | int16(pcm[srcIdx*4+3])<<8

		var l1, r1 int16
		if srcIdx+1 < srcFrames {
			l1 = int16(pcm[(srcIdx+1)*4]) | int16(pcm[(srcIdx+1)*4+1])<<8
			r1 = int16(pcm[(srcIdx+1)*4+2]) | int16(pcm[(srcIdx+1)*4+3])<<8
		} else {
			l1 = l0
			r1 = r0
		}

		lInterp := int16(float64(l0)*(1-frac) + float64(l1)*frac)
		rInterp := int16(float64(r0)*(1-frac) + float64(r1)*frac)

		out[i*4] = byte(lInterp)
		out[i*4+1] = byte(lInterp >> 8)
		out[i*4+2] = byte(rInterp)
		out[i*4+3] = byte(rInterp >> 8)
	}
	return out
}
