package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

var _ Store = (*Memory)(nil)

// Memory is an in-memory Store. It backs tests and deployments that run
// without a database path configured. Safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	runs      map[string]Run
	order     []string // run IDs in insertion order, oldest first
	metrics   map[string][]Metric
	artifacts map[string]map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		runs:      make(map[string]Run),
		metrics:   make(map[string][]Metric),
		artifacts: make(map[string]map[string]string),
	}
}

func (m *Memory) CreateRun(_ context.Context, run Run, metrics []Metric, artifacts []Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("run %q already exists", run.ID)
	}

	ms := make([]Metric, len(metrics))
	copy(ms, metrics)
	sort.Slice(ms, func(i, j int) bool { return ms[i].Key < ms[j].Key })

	arts := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		arts[a.Name] = a.Content
	}

	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	m.metrics[run.ID] = ms
	m.artifacts[run.ID] = arts
	return nil
}

func (m *Memory) ListRuns(_ context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Run, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.runs[m.order[i]])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetRun(_ context.Context, id string) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

func (m *Memory) Metrics(_ context.Context, runID string) ([]Metric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.runs[runID]; !ok {
		return nil, ErrRunNotFound
	}
	ms := m.metrics[runID]
	out := make([]Metric, len(ms))
	copy(out, ms)
	return out, nil
}

func (m *Memory) Artifact(_ context.Context, runID, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.runs[runID]; !ok {
		return "", ErrRunNotFound
	}
	return m.artifacts[runID][name], nil
}

func (m *Memory) Series(_ context.Context, host, key string, since time.Time) ([]SeriesPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []SeriesPoint
	for _, id := range m.order {
		run := m.runs[id]
		if run.Host != host || run.CreatedAt.Before(since) {
			continue
		}
		for _, metric := range m.metrics[id] {
			if metric.Key == key {
				out = append(out, SeriesPoint{CreatedAt: run.CreatedAt, Value: metric.Value})
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) Close() error { return nil }
