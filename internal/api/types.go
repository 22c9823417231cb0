package api

import (
	"github.com/jtq-dev/opslens/internal/store"
)

// RunResponse is one run entry in GET /api/v1/runs.
type RunResponse struct {
	ID          string `json:"id"`
	Host        string `json:"host"`
	CreatedAt   string `json:"created_at"` // RFC3339
	ArchiveName string `json:"archive_name"`
	HealthScore int    `json:"health_score"`
}

// RunDetailResponse is the payload for GET /api/v1/runs/{id}.
type RunDetailResponse struct {
	Run     RunResponse    `json:"run"`
	Metrics []store.Metric `json:"metrics"`
}

// ArtifactResponse is the payload for GET /api/v1/runs/{id}/artifact.
type ArtifactResponse struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// TrendPointResponse is one day in GET /api/v1/trend.
type TrendPointResponse struct {
	Date     string   `json:"date"` // "2006-01-02"
	Avg      float64  `json:"avg"`
	Rolling7 *float64 `json:"rolling7"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	OK       bool `json:"ok"`
	RunCount int  `json:"run_count"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
