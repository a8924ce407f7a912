package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/docindex/internal/config"
	"github.com/kirillkom/docindex/internal/core/domain"
	"github.com/kirillkom/docindex/internal/core/ports"
	"github.com/kirillkom/docindex/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg     config.Config
	submit  ports.IngestSubmitter
	jobs    ports.JobReader
	search  ports.SearchService
	ready   func(ctx context.Context) error
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	submit ports.IngestSubmitter,
	jobs ports.JobReader,
	search ports.SearchService,
	ready func(ctx context.Context) error,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:     cfg,
		submit:  submit,
		jobs:    jobs,
		search:  search,
		ready:   ready,
		metrics: httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", rt.healthLive)
	mux.HandleFunc("/health/ready", rt.healthReady)
	mux.HandleFunc("/api/ingest", rt.submitIngest)
	mux.HandleFunc("/api/ingest/", rt.getJob)
	mux.HandleFunc("/api/search", rt.searchChunks)

	var handler http.Handler = mux
	if rt.cfg.OpenAPIValidation {
		handler = openAPIValidationMiddleware(handler)
	}
	handler = rateLimitMiddleware(handler, rt.cfg.IngestRatePerSecond, rt.cfg.IngestRateBurst)
	handler = backpressureMiddleware(handler, 256, 50*time.Millisecond)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) healthReady(w http.ResponseWriter, r *http.Request) {
	if rt.ready != nil {
		if err := rt.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) submitIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SourceLocation string            `json:"source_location"`
		DocID          string            `json:"doc_id"`
		Tags           map[string]string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	job, err := rt.submit.Submit(r.Context(), ports.SubmitRequest{
		SourceLocation: req.SourceLocation,
		DocID:          req.DocID,
		Tags:           req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordIngestAccepted(serviceName)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"state":  job.State,
	})
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/ingest/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return
	}

	job, err := rt.jobs.Get(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) searchChunks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string            `json:"query"`
		TopK  int               `json:"top_k"`
		Tags  map[string]string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	hits, err := rt.search.Search(r.Context(), req.Query, req.TopK, domain.SearchFilter{Tags: req.Tags})
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordSearch(serviceName, len(hits), time.Since(start))
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
