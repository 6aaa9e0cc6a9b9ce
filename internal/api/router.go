package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "reconctl/internal/platform/errors"
)

// NewRouter wires the REST surface onto a Facade.
func NewRouter(f *Facade) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1/scans", func(r chi.Router) {
		r.Post("/", f.handleSubmitScan)
		r.Post("/bulk", f.handleSubmitBulk)
		r.Get("/", f.handleListScans)

		r.Route("/{jobID}", func(r chi.Router) {
			r.Get("/", f.handleGetScan)
			r.Delete("/", f.handleDeleteScan)
			r.Get("/progress", f.handleProgress)
			r.Post("/leak-scan", f.handleLeakScan)
			r.Post("/subdomains", f.handleAddSubdomain)
		})
	})

	return r
}

type submitScanRequest struct {
	Domain string `json:"domain"`
}

type submitScanResponse struct {
	JobID   string `json:"job_id"`
	Domain  string `json:"domain"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (f *Facade) handleSubmitScan(w http.ResponseWriter, r *http.Request) {
	var req submitScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	job, err := f.SubmitScan(r.Context(), req.Domain)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitScanResponse{
		JobID: job.ID, Domain: job.Domain, Status: string(job.Status), Message: "scan queued",
	})
}

type submitBulkRequest struct {
	Domains []string `json:"domains"`
}

type submitBulkResponse struct {
	TotalSubmitted int      `json:"total_submitted"`
	Jobs           []string `json:"jobs"`
	Skipped        []string `json:"skipped,omitempty"`
	Message        string   `json:"message"`
}

func (f *Facade) handleSubmitBulk(w http.ResponseWriter, r *http.Request) {
	var req submitBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	jobs, skipped := f.SubmitBulk(r.Context(), req.Domains)
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	writeJSON(w, http.StatusCreated, submitBulkResponse{
		TotalSubmitted: len(jobs), Jobs: ids, Skipped: skipped, Message: "bulk scan queued",
	})
}

func (f *Facade) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	jobs, err := f.ListScans(r.Context(), limit, offset)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (f *Facade) handleGetScan(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	res, err := f.GetScan(r.Context(), jobID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (f *Facade) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := f.DeleteScan(r.Context(), jobID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (f *Facade) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	p, err := f.Progress(r.Context(), jobID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type leakScanRequest struct {
	URLs []string `json:"urls"`
	Mode string   `json:"mode"`
}

type leakScanResponse struct {
	TaskID      string   `json:"task_id"`
	JobID       string   `json:"job_id"`
	URLsToScan  []string `json:"urls_to_scan"`
	Mode        string   `json:"mode"`
	Status      string   `json:"status"`
}

func (f *Facade) handleLeakScan(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	var req leakScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	taskID, filtered, err := f.SubmitLeakScan(r.Context(), jobID, req.URLs, req.Mode)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, leakScanResponse{
		TaskID: taskID, JobID: jobID, URLsToScan: filtered, Mode: req.Mode, Status: "started",
	})
}

type addSubdomainRequest struct {
	Subdomain  string `json:"subdomain"`
	IsLive     *bool  `json:"is_live,omitempty"`
	HTTPStatus *int   `json:"http_status,omitempty"`
}

func (f *Facade) handleAddSubdomain(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	var req addSubdomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sub, err := f.AddSubdomain(r.Context(), jobID, AddSubdomainParams{
		Subdomain: req.Subdomain, IsLive: req.IsLive, HTTPStatus: req.HTTPStatus,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// writeAppError maps a domain error kind onto a status code: 400 invalid
// argument, 404 not found, 409 conflict, 500 otherwise.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsInvalidArgument(err):
		writeError(w, http.StatusBadRequest, err)
	case apperrors.IsNotFound(err):
		writeError(w, http.StatusNotFound, err)
	case apperrors.IsConflict(err):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
