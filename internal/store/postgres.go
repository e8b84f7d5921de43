package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the detections table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS detections (
    id            UUID PRIMARY KEY,
    source        TEXT NOT NULL DEFAULT '',
    start_frame   BIGINT NOT NULL,
    end_frame     BIGINT NOT NULL,
    start_s       DOUBLE PRECISION NOT NULL,
    end_s         DOUBLE PRECISION NOT NULL,
    duration_s    DOUBLE PRECISION NOT NULL,
    sampling_rate INTEGER NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_detections_source ON detections(source, created_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over the given connection or pool. The
// caller is responsible for calling [PostgresStore.Migrate] before issuing
// queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the detections table and
// index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Insert persists a detection, assigning a fresh UUID and creation time
// when unset.
func (s *PostgresStore) Insert(ctx context.Context, det *Detection) error {
	if det.ID == uuid.Nil {
		det.ID = uuid.New()
	}
	if det.CreatedAt.IsZero() {
		det.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO detections (id, source, start_frame, end_frame, start_s, end_s, duration_s, sampling_rate, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		det.ID, det.Source, det.StartFrame, det.EndFrame,
		det.Start, det.End, det.Duration, det.SamplingRate, det.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert detection %s: %w", det.ID, err)
	}
	return nil
}

// Get returns the detection with the given ID.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Detection, error) {
	row := s.db.QueryRow(ctx, `
SELECT id, source, start_frame, end_frame, start_s, end_s, duration_s, sampling_rate, created_at
FROM detections WHERE id = $1`, id)

	det := &Detection{}
	err := row.Scan(&det.ID, &det.Source, &det.StartFrame, &det.EndFrame,
		&det.Start, &det.End, &det.Duration, &det.SamplingRate, &det.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get detection %s: %w", id, err)
	}
	return det, nil
}

// ListBySource returns up to limit detections for a source, most recent
// first.
func (s *PostgresStore) ListBySource(ctx context.Context, source string, limit int) ([]*Detection, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
SELECT id, source, start_frame, end_frame, start_s, end_s, duration_s, sampling_rate, created_at
FROM detections WHERE source = $1 ORDER BY created_at DESC LIMIT $2`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list detections for %q: %w", source, err)
	}
	defer rows.Close()

	var out []*Detection
	for rows.Next() {
		det := &Detection{}
		if err := rows.Scan(&det.ID, &det.Source, &det.StartFrame, &det.EndFrame,
			&det.Start, &det.End, &det.Duration, &det.SamplingRate, &det.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan detection: %w", err)
		}
		out = append(out, det)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list detections for %q: %w", source, err)
	}
	return out, nil
}
