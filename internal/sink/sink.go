// Package sink contains the delivery targets a detection is handed to the
// moment it is finalized: the stdout printer, per-detection file saver,
// whole-stream saver, persistence store and the live feed.
//
// Sinks are invoked synchronously from the pipeline, in emission order, and
// must not read from the audio source.
package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/MrWong99/earshot/internal/format"
	"github.com/MrWong99/earshot/pkg/audio"
)

// Sink receives finalized detections. id is the 1-based detection number
// within the run.
type Sink interface {
	OnDetection(ctx context.Context, id int, det audio.Detection) error

	// Close flushes whatever the sink buffers. Called once after end of
	// stream.
	Close() error
}

// meta builds the template values for a detection.
func meta(id int, det audio.Detection) format.EventMeta {
	return format.EventMeta{
		ID:       id,
		Start:    det.Start,
		End:      det.End,
		Duration: det.Duration(),
	}
}

// Printer writes one line per detection, rendered from a template with a
// configurable time format.
type Printer struct {
	w         io.Writer
	template  string
	formatter format.DurationFormatter
}

// NewPrinter creates a printer. template may use the {id}, {start}, {end}
// and {duration} placeholders; timeFormat is a duration format accepted by
// [format.MakeDurationFormatter].
func NewPrinter(w io.Writer, template, timeFormat string) (*Printer, error) {
	f, err := format.MakeDurationFormatter(timeFormat)
	if err != nil {
		return nil, err
	}
	return &Printer{w: w, template: template, formatter: f}, nil
}

// OnDetection writes the detection line.
func (p *Printer) OnDetection(_ context.Context, id int, det audio.Detection) error {
	line := format.ExpandTemplateTimes(p.template, meta(id, det), p.formatter)
	if _, err := fmt.Fprintln(p.w, line); err != nil {
		return fmt.Errorf("sink: print detection %d: %w", id, err)
	}
	return nil
}

// Close is a no-op; the printer does not buffer.
func (p *Printer) Close() error { return nil }

var _ Sink = (*Printer)(nil)

// RegionSaver writes each detection to its own audio file, named by a
// template. The container is guessed from the expanded name's extension.
type RegionSaver struct {
	template string
}

// NewRegionSaver creates a saver with the given file-name template.
func NewRegionSaver(template string) *RegionSaver {
	return &RegionSaver{template: template}
}

// OnDetection saves the detection's audio.
func (s *RegionSaver) OnDetection(_ context.Context, id int, det audio.Detection) error {
	path := format.ExpandTemplate(s.template, meta(id, det))
	if err := det.Save(path); err != nil {
		return fmt.Errorf("sink: save detection %d: %w", id, err)
	}
	return nil
}

// Close is a no-op; every detection is written immediately.
func (s *RegionSaver) Close() error { return nil }

var _ Sink = (*RegionSaver)(nil)

// StreamSaver writes the whole captured stream to one file on Close,
// byte-identical to what the source produced. It requires the pipeline's
// source to be wrapped in a [audio.Recorder].
type StreamSaver struct {
	rec  *audio.Recorder
	path string
}

// NewStreamSaver creates a stream saver over the recording wrapper.
func NewStreamSaver(rec *audio.Recorder, path string) *StreamSaver {
	return &StreamSaver{rec: rec, path: path}
}

// OnDetection is a no-op; the recorder captures continuously.
func (s *StreamSaver) OnDetection(context.Context, int, audio.Detection) error { return nil }

// Close writes the capture.
func (s *StreamSaver) Close() error {
	region, err := audio.NewRegion(s.rec.Data(), s.rec.Format())
	if err != nil {
		return fmt.Errorf("sink: assemble stream capture: %w", err)
	}
	if err := region.Save(s.path); err != nil {
		return fmt.Errorf("sink: save stream capture: %w", err)
	}
	return nil
}

var _ Sink = (*StreamSaver)(nil)
