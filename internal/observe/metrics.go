// Package observe provides observability primitives for earshot:
// OpenTelemetry metrics with a Prometheus exporter bridge, and tracing
// around pipeline runs.
//
// A package-level default [Metrics] instance is not provided on purpose;
// tests and the application create their own via [NewMetrics] with the
// meter provider they control.
package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all earshot metrics.
const meterName = "github.com/MrWong99/earshot"

// Metrics holds all OpenTelemetry metric instruments for the detection
// pipeline. All fields are safe for concurrent use — the underlying OTel
// types handle their own synchronisation.
type Metrics struct {
	// FramesProcessed counts analysis windows fed into the tokenizer. Use
	// with attribute.String("verdict", "valid"|"invalid").
	FramesProcessed metric.Int64Counter

	// DetectionsDelivered counts finalized detections handed to sinks.
	DetectionsDelivered metric.Int64Counter

	// DetectionDuration tracks the length of delivered detections in
	// seconds.
	DetectionDuration metric.Float64Histogram

	// SinkErrors counts delivery failures. Use with
	// attribute.String("sink", ...).
	SinkErrors metric.Int64Counter

	// SourceReadErrors counts fatal read failures on the audio source.
	SourceReadErrors metric.Int64Counter

	// ActiveRuns tracks the number of tokenization runs in progress.
	ActiveRuns metric.Int64UpDownCounter
}

// durationBuckets defines histogram bucket boundaries (in seconds) for
// detection lengths.
var durationBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesProcessed, err = m.Int64Counter("earshot.frames.processed",
		metric.WithDescription("Analysis windows fed into the tokenizer."),
	); err != nil {
		return nil, err
	}
	if met.DetectionsDelivered, err = m.Int64Counter("earshot.detections.delivered",
		metric.WithDescription("Finalized detections handed to sinks."),
	); err != nil {
		return nil, err
	}
	if met.DetectionDuration, err = m.Float64Histogram("earshot.detections.duration",
		metric.WithDescription("Length of delivered detections."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SinkErrors, err = m.Int64Counter("earshot.sink.errors",
		metric.WithDescription("Detection delivery failures."),
	); err != nil {
		return nil, err
	}
	if met.SourceReadErrors, err = m.Int64Counter("earshot.source.read_errors",
		metric.WithDescription("Fatal read failures on the audio source."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRuns, err = m.Int64UpDownCounter("earshot.runs.active",
		metric.WithDescription("Tokenization runs in progress."),
	); err != nil {
		return nil, err
	}
	return met, nil
}
