package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// portaudioInit guards the process-wide PortAudio initialisation.
var portaudioInit sync.Once

// MicSource captures live PCM from the default input device via PortAudio.
// Samples are 16-bit signed little-endian. A live source cannot rewind; wrap
// it in a [Recorder] when replay is needed, or in a [Limiter] to bound the
// capture duration.
type MicSource struct {
	stream  *portaudio.Stream
	buf     []int16
	pending []byte
	format  Format
	closed  bool
}

// NewMicSource opens the default input device at the given rate and channel
// count. framesPerBuffer sets the device read granularity; 0 selects 1024.
func NewMicSource(samplingRate, channels, framesPerBuffer int) (*MicSource, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}
	format := Format{SamplingRate: samplingRate, SampleWidth: 2, Channels: channels}
	if err := format.Validate(); err != nil {
		return nil, err
	}

	var initErr error
	portaudioInit.Do(func() { initErr = portaudio.Initialize() })
	if initErr != nil {
		return nil, fmt.Errorf("audio: initialise portaudio: %w", initErr)
	}

	buf := make([]int16, framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(samplingRate), framesPerBuffer, buf)
	if err != nil {
		return nil, fmt.Errorf("audio: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("audio: start input stream: %w", err)
	}
	return &MicSource{stream: stream, buf: buf, format: format}, nil
}

// Read blocks on the device until n samples are available and returns them.
func (s *MicSource) Read(n int) ([]byte, error) {
	if s.closed {
		return nil, fmt.Errorf("audio: read from closed microphone source")
	}
	want := n * s.format.FrameSize()
	for len(s.pending) < want {
		if err := s.stream.Read(); err != nil {
			return nil, fmt.Errorf("audio: read input stream: %w", err)
		}
		for _, v := range s.buf {
			s.pending = append(s.pending, byte(v), byte(v>>8))
		}
	}
	chunk := s.pending[:want]
	s.pending = s.pending[want:]
	return chunk, nil
}

// Format returns the capture format.
func (s *MicSource) Format() Format { return s.format }

// Close stops and closes the device stream.
func (s *MicSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.stream.Stop(); err != nil {
		s.stream.Close()
		return fmt.Errorf("audio: stop input stream: %w", err)
	}
	return s.stream.Close()
}

var _ Source = (*MicSource)(nil)
