package sink

import (
	"context"
	"fmt"

	"github.com/MrWong99/earshot/internal/server"
	"github.com/MrWong99/earshot/internal/store"
	"github.com/MrWong99/earshot/pkg/audio"
)

// StoreSink persists every detection through a [store.Store].
type StoreSink struct {
	store  store.Store
	source string
}

// NewStoreSink creates a persisting sink. source labels the stream the
// detections came from.
func NewStoreSink(st store.Store, source string) *StoreSink {
	return &StoreSink{store: st, source: source}
}

// OnDetection inserts the detection.
func (s *StoreSink) OnDetection(ctx context.Context, id int, det audio.Detection) error {
	rec := &store.Detection{
		Source:       s.source,
		StartFrame:   det.StartFrame,
		EndFrame:     det.EndFrame,
		Start:        det.Start,
		End:          det.End,
		Duration:     det.Duration(),
		SamplingRate: det.Format().SamplingRate,
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return fmt.Errorf("sink: persist detection %d: %w", id, err)
	}
	return nil
}

// Close is a no-op; inserts are immediate.
func (s *StoreSink) Close() error { return nil }

var _ Sink = (*StoreSink)(nil)

// FeedSink broadcasts every detection on the live WebSocket feed.
type FeedSink struct {
	feed   *server.Feed
	source string
}

// NewFeedSink creates a broadcasting sink.
func NewFeedSink(feed *server.Feed, source string) *FeedSink {
	return &FeedSink{feed: feed, source: source}
}

// OnDetection publishes the detection; subscribers that lag are dropped by
// the feed, so this never fails the pipeline.
func (s *FeedSink) OnDetection(_ context.Context, id int, det audio.Detection) error {
	s.feed.Publish(server.FeedEvent{
		ID:         id,
		Source:     s.source,
		StartFrame: det.StartFrame,
		EndFrame:   det.EndFrame,
		Start:      det.Start,
		End:        det.End,
		Duration:   det.Duration(),
	})
	return nil
}

// Close is a no-op.
func (s *FeedSink) Close() error { return nil }

var _ Sink = (*FeedSink)(nil)
