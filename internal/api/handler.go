package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jtq-dev/opslens/internal/analytics"
	"github.com/jtq-dev/opslens/internal/bundle"
	"github.com/jtq-dev/opslens/internal/config"
	"github.com/jtq-dev/opslens/internal/ingest"
	"github.com/jtq-dev/opslens/internal/store"
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store    store.Store
	ingestor *ingest.Service
	mux      *http.ServeMux

	// maxUpload caps the compressed request body on the upload route.
	maxUpload int64

	// now is injectable for deterministic trend windows in tests.
	now func() time.Time
}

// New creates a Handler wired to the given store and ingestor and registers
// all routes.
func New(st store.Store, ing *ingest.Service, maxUpload int64) *Handler {
	h := &Handler{
		store:     st,
		ingestor:  ing,
		mux:       http.NewServeMux(),
		maxUpload: maxUpload,
		now:       time.Now,
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/runs", h.runs)
	h.mux.HandleFunc("/api/v1/runs/", h.runSubtree) // {id} and {id}/artifact
	h.mux.HandleFunc("/api/v1/trend", h.trend)
	h.mux.HandleFunc("/api/v1/compare", h.compare)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — a liveness summary.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	runs, err := h.store.ListRuns(r.Context(), 0)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{OK: true, RunCount: len(runs)})
}

// runs dispatches GET (list) and POST (upload) on /api/v1/runs.
func (h *Handler) runs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listRuns(w, r)
	case http.MethodPost:
		h.upload(w, r)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// upload handles POST /api/v1/runs — a multipart archive upload from the
// collector. The "file" part carries the tar.gz body.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonErr(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		jsonErr(w, http.StatusBadRequest, "multipart upload with a \"file\" part required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(header.Filename, ".tar.gz") && !strings.HasSuffix(header.Filename, ".tgz") {
		jsonErr(w, http.StatusBadRequest, "upload must be a .tar.gz diagnostic bundle")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonErr(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		jsonErr(w, http.StatusBadRequest, "could not read upload")
		return
	}

	res, err := h.ingestor.Ingest(r.Context(), header.Filename, data)
	if err != nil {
		code, msg := ingestError(err)
		jsonErr(w, code, msg)
		return
	}
	jsonResp(w, http.StatusCreated, res)
}

// listRuns returns GET /api/v1/runs — newest first.
func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", config.DefaultRunListLimit)
	if limit < 1 || limit > config.MaxRunListLimit {
		limit = config.DefaultRunListLimit
	}
	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	jsonResp(w, http.StatusOK, out)
}

// runSubtree handles GET /api/v1/runs/{id} and /api/v1/runs/{id}/artifact.
func (h *Handler) runSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	id, tail, _ := strings.Cut(rest, "/")
	if id == "" {
		h.listRuns(w, r)
		return
	}

	switch tail {
	case "":
		h.runDetail(w, r, id)
	case "artifact":
		h.runArtifact(w, r, id)
	default:
		jsonErr(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) runDetail(w http.ResponseWriter, r *http.Request, id string) {
	run, err := h.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		jsonErr(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	ms, err := h.store.Metrics(r.Context(), id)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	jsonResp(w, http.StatusOK, RunDetailResponse{Run: toRunResponse(run), Metrics: ms})
}

func (h *Handler) runArtifact(w http.ResponseWriter, r *http.Request, id string) {
	name := r.URL.Query().Get("name")
	if name == "" {
		jsonErr(w, http.StatusBadRequest, "name parameter required")
		return
	}

	content, err := h.store.Artifact(r.Context(), id, name)
	if errors.Is(err, store.ErrRunNotFound) {
		jsonErr(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	// Absent artifact is an empty content, not an error.
	jsonResp(w, http.StatusOK, ArtifactResponse{Name: name, Content: content})
}

// trend returns GET /api/v1/trend?host=H&key=K&days=D — daily averages with
// the trailing rolling mean. No history yields an empty list, not an error.
func (h *Handler) trend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	host := r.URL.Query().Get("host")
	key := r.URL.Query().Get("key")
	if host == "" || key == "" {
		jsonErr(w, http.StatusBadRequest, "host and key parameters required")
		return
	}
	days := intParam(r, "days", config.DefaultTrendDays)
	if days < 1 || days > config.MaxTrendDays {
		days = config.DefaultTrendDays
	}

	since := h.now().UTC().AddDate(0, 0, -days)
	points, err := h.store.Series(r.Context(), host, key, since)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	daily := analytics.Trend(points)
	out := make([]TrendPointResponse, 0, len(daily))
	for _, dp := range daily {
		out = append(out, TrendPointResponse{
			Date:     dp.Date.Format("2006-01-02"),
			Avg:      dp.Avg,
			Rolling7: dp.Rolling7,
		})
	}
	jsonResp(w, http.StatusOK, out)
}

// compare returns GET /api/v1/compare?run_a=A&run_b=B — the key-wise delta
// over the union of both runs' metrics. Ordering/top-N is up to the caller.
func (h *Handler) compare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	runA := r.URL.Query().Get("run_a")
	runB := r.URL.Query().Get("run_b")
	if runA == "" || runB == "" {
		jsonErr(w, http.StatusBadRequest, "run_a and run_b parameters required")
		return
	}

	a, err := h.metricMap(r, runA)
	if err != nil {
		h.compareErr(w, err)
		return
	}
	b, err := h.metricMap(r, runB)
	if err != nil {
		h.compareErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, analytics.Diff(a, b))
}

func (h *Handler) metricMap(r *http.Request, runID string) (map[string]float64, error) {
	ms, err := h.store.Metrics(r.Context(), runID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Key] = m.Value
	}
	return out, nil
}

func (h *Handler) compareErr(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		jsonErr(w, http.StatusNotFound, "run not found")
		return
	}
	jsonErr(w, http.StatusInternalServerError, "store unavailable")
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// ingestError maps the ingestion taxonomy to an HTTP status and a
// client-safe message.
func ingestError(err error) (int, string) {
	switch {
	case errors.Is(err, bundle.ErrInvalidArchive):
		return http.StatusBadRequest, "not a valid gzip tar archive"
	case errors.Is(err, bundle.ErrUnsafePath):
		return http.StatusBadRequest, "archive contains unsafe member paths"
	case errors.Is(err, bundle.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "archive exceeds extraction limits"
	default:
		return http.StatusInternalServerError, "ingestion failed"
	}
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func toRunResponse(run store.Run) RunResponse {
	return RunResponse{
		ID:          run.ID,
		Host:        run.Host,
		CreatedAt:   run.CreatedAt.UTC().Format(time.RFC3339),
		ArchiveName: run.ArchiveName,
		HealthScore: run.HealthScore,
	}
}
