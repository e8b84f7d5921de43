// Package store persists finalized detections so that runs over long-lived
// streams leave an inspectable record.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested detection does not exist.
var ErrNotFound = errors.New("store: detection not found")

// Detection is the persisted form of a finalized audio event.
type Detection struct {
	// ID identifies the detection.
	ID uuid.UUID

	// Source labels the stream the detection came from (file path, "mic").
	Source string

	// StartFrame and EndFrame are the analysis-window indices of the event.
	StartFrame int
	EndFrame   int

	// Start, End and Duration are in seconds.
	Start    float64
	End      float64
	Duration float64

	// SamplingRate of the underlying stream, in Hz.
	SamplingRate int

	// CreatedAt is set by the store on insert.
	CreatedAt time.Time
}

// Store is the persistence interface for detections.
type Store interface {
	// Insert persists a detection. A zero ID is assigned a fresh UUID.
	Insert(ctx context.Context, det *Detection) error

	// Get returns the detection with the given ID, or [ErrNotFound].
	Get(ctx context.Context, id uuid.UUID) (*Detection, error)

	// ListBySource returns up to limit detections for a source, most recent
	// first.
	ListBySource(ctx context.Context, source string, limit int) ([]*Detection, error)
}
