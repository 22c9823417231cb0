package store

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned by read operations for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// Run is one ingested diagnostic snapshot's metadata. Immutable once created.
type Run struct {
	ID          string    `json:"id"`
	Host        string    `json:"host"`
	CreatedAt   time.Time `json:"created_at"`
	ArchiveName string    `json:"archive_name"`
	HealthScore int       `json:"health_score"`
}

// Metric is one stored metric row. Keys are unique within a run.
type Metric struct {
	RunID string  `json:"-"`
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Artifact is one stored raw-text artifact.
type Artifact struct {
	RunID   string
	Name    string
	Content string
}

// SeriesPoint is one (run time, value) observation for a host/key series.
type SeriesPoint struct {
	CreatedAt time.Time
	Value     float64
}

// Store is the narrow persistence interface the rest of the system depends
// on. Implementations must make CreateRun atomic and keep committed runs
// immutable; analytics reads are plain queries over committed history and
// never block ingestion.
type Store interface {
	// CreateRun commits a run together with all of its metrics and
	// artifacts. Either everything becomes visible or nothing does.
	CreateRun(ctx context.Context, run Run, metrics []Metric, artifacts []Artifact) error

	// ListRuns returns up to limit runs, newest first. A limit of zero or
	// less returns every run.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// GetRun returns one run's metadata, or ErrRunNotFound.
	GetRun(ctx context.Context, id string) (Run, error)

	// Metrics returns all metric rows for a run, sorted by key.
	// ErrRunNotFound when the run does not exist.
	Metrics(ctx context.Context, runID string) ([]Metric, error)

	// Artifact returns one artifact's raw text, or the empty string when
	// the run exists but never stored that artifact.
	Artifact(ctx context.Context, runID, name string) (string, error)

	// Series returns all values for one host/key ordered by run creation
	// time, oldest first, restricted to runs at or after since. An empty
	// series is a valid result, not an error.
	Series(ctx context.Context, host, key string, since time.Time) ([]SeriesPoint, error)

	// Close releases any underlying resources.
	Close() error
}
