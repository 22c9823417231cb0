package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jtq-dev/opslens/internal/bundle"
	"github.com/jtq-dev/opslens/internal/extract"
	"github.com/jtq-dev/opslens/internal/metrics"
	"github.com/jtq-dev/opslens/internal/score"
	"github.com/jtq-dev/opslens/internal/store"
)

// rawArtifacts are members stored verbatim for the UI even though no parser
// consumes them. meta.txt is also part of the parsing contract.
var rawArtifacts = []string{bundle.MetaFile, "uname.txt", "os_release.txt"}

// Result is the caller-facing outcome of a successful ingestion.
type Result struct {
	RunID       string `json:"run_id"`
	Host        string `json:"host"`
	HealthScore int    `json:"health_score"`
}

// Notifier receives a callback after each committed run. The WebSocket hub
// implements it; a nil Notifier disables notifications.
type Notifier interface {
	RunCreated(run store.Run)
}

// Service ingests diagnostic bundles. Safe for concurrent use; limits may
// be swapped at runtime by config hot reload.
type Service struct {
	store    store.Store
	notifier Notifier
	allowed  map[string]struct{}

	mu     sync.RWMutex
	limits bundle.Limits

	// Injectable for deterministic tests.
	now   func() time.Time
	newID func() string
}

// New creates a Service committing to st. notifier may be nil.
func New(st store.Store, limits bundle.Limits, notifier Notifier) *Service {
	allowed := make(map[string]struct{})
	for _, name := range extract.ArtifactNames() {
		allowed[name] = struct{}{}
	}
	for _, name := range rawArtifacts {
		allowed[name] = struct{}{}
	}
	return &Service{
		store:    st,
		notifier: notifier,
		allowed:  allowed,
		limits:   limits,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// SetLimits replaces the archive limits. Called on config reload; in-flight
// ingestions keep the limits they started with.
func (s *Service) SetLimits(l bundle.Limits) {
	s.mu.Lock()
	s.limits = l
	s.mu.Unlock()
	slog.Info("ingest: limits updated", "max_bytes", l.MaxBytes, "max_members", l.MaxMembers)
}

// Limits returns the current archive limits.
func (s *Service) Limits() bundle.Limits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits
}

// Ingest unpacks, parses, scores, and commits one uploaded archive.
// On any error nothing is persisted; the returned error is one of the
// bundle sentinels or a wrapped store failure.
func (s *Service) Ingest(ctx context.Context, archiveName string, data []byte) (*Result, error) {
	now := s.now().UTC()

	b, err := bundle.Open(data, s.Limits(), s.allowed, now)
	if err != nil {
		metrics.IngestFailed(failureKind(err))
		slog.Warn("ingest: archive rejected", "archive", archiveName, "err", err)
		return nil, err
	}

	extracted := extract.Extract(b.Artifacts)
	scored := score.Compute(extracted)

	runID := s.newID()
	run := store.Run{
		ID:          runID,
		Host:        b.Host,
		CreatedAt:   b.Timestamp,
		ArchiveName: archiveName,
		HealthScore: scored.Score,
	}

	rows := make([]store.Metric, 0, len(extracted)+1)
	for _, m := range extracted {
		rows = append(rows, store.Metric{RunID: runID, Key: m.Key, Value: m.Value, Unit: string(m.Unit)})
	}
	// The score itself is stored as a metric so it shows up in trends and diffs.
	rows = append(rows, store.Metric{
		RunID: runID,
		Key:   score.MetricKey,
		Value: float64(scored.Score),
		Unit:  string(extract.UnitScore),
	})

	artifacts := make([]store.Artifact, 0, len(b.Artifacts))
	for name, content := range b.Artifacts {
		artifacts = append(artifacts, store.Artifact{RunID: runID, Name: name, Content: content})
	}

	if err := s.store.CreateRun(ctx, run, rows, artifacts); err != nil {
		metrics.IngestFailed("store")
		slog.Error("ingest: commit failed", "archive", archiveName, "host", b.Host, "err", err)
		return nil, fmt.Errorf("commit run: %w", err)
	}

	metrics.RunIngested(b.Host, scored.Score)
	slog.Info("ingest: run committed",
		"run_id", runID,
		"host", b.Host,
		"archive", archiveName,
		"metrics", len(rows),
		"score", scored.Score,
	)

	if s.notifier != nil {
		s.notifier.RunCreated(run)
	}
	return &Result{RunID: runID, Host: b.Host, HealthScore: scored.Score}, nil
}

// failureKind maps a bundle error to its metrics label.
func failureKind(err error) string {
	switch {
	case errors.Is(err, bundle.ErrInvalidArchive):
		return "invalid_archive"
	case errors.Is(err, bundle.ErrUnsafePath):
		return "unsafe_path"
	case errors.Is(err, bundle.ErrTooLarge):
		return "too_large"
	default:
		return "internal"
	}
}
