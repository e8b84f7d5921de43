package audio

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// RawFileSource reads headerless PCM from a file. The format cannot be
// derived from the data and must be supplied by the caller. The source is
// seekable and therefore rewindable.
type RawFileSource struct {
	f      *os.File
	format Format
}

// NewRawFileSource opens the raw PCM file at path.
func NewRawFileSource(path string, format Format) (*RawFileSource, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %q: %w", path, err)
	}
	return &RawFileSource{f: f, format: format}, nil
}

// Read returns up to n samples from the file.
func (s *RawFileSource) Read(n int) ([]byte, error) {
	buf := make([]byte, n*s.format.FrameSize())
	read, err := io.ReadFull(s.f, buf)
	if err == io.ErrUnexpectedEOF {
		// Keep whole samples only; a torn trailing sample is dropped.
		read -= read % s.format.FrameSize()
		err = nil
	}
	if read == 0 && err == nil {
		err = io.EOF
	}
	return buf[:read], err
}

// Format returns the configured PCM format.
func (s *RawFileSource) Format() Format { return s.format }

// Rewind seeks back to the start of the file.
func (s *RawFileSource) Rewind() error {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("audio: rewind %q: %w", s.f.Name(), err)
	}
	return nil
}

// Close closes the underlying file.
func (s *RawFileSource) Close() error { return s.f.Close() }

var (
	_ Source   = (*RawFileSource)(nil)
	_ Rewinder = (*RawFileSource)(nil)
)

// StdinSource reads raw PCM from standard input (or any reader standing in
// for it). It is not seekable; wrap it in a [Recorder] if rewind is needed.
type StdinSource struct {
	r      *bufio.Reader
	format Format
}

// NewStdinSource creates a source over os.Stdin.
func NewStdinSource(format Format) (*StdinSource, error) {
	return NewReaderSource(os.Stdin, format)
}

// NewReaderSource creates a raw PCM source over an arbitrary reader.
func NewReaderSource(r io.Reader, format Format) (*StdinSource, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	return &StdinSource{r: bufio.NewReader(r), format: format}, nil
}

// Read returns up to n samples from the stream.
func (s *StdinSource) Read(n int) ([]byte, error) {
	buf := make([]byte, n*s.format.FrameSize())
	read, err := io.ReadFull(s.r, buf)
	if err == io.ErrUnexpectedEOF {
		read -= read % s.format.FrameSize()
		err = nil
	}
	if read == 0 && err == nil {
		err = io.EOF
	}
	return buf[:read], err
}

// Format returns the configured PCM format.
func (s *StdinSource) Format() Format { return s.format }

var _ Source = (*StdinSource)(nil)
