package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/review"
	"github.com/jdziat/recipe-ingest/pkg/security"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// upload handles POST /v1/uploads
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "upload exceeds the size limit")
			return
		}
		respondError(w, http.StatusBadRequest, "Bad Request", "expected a multipart form with a \"file\" field")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Bad Request", "missing \"file\" field")
		return
	}
	defer file.Close()

	job, err := s.jobs.Submit(r.Context(), header.Filename, file)
	if err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, jobToWire(job))
}

// listJobs handles GET /v1/jobs
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.JobFilter{
		Status: core.JobStatus(q.Get("status")),
		Search: q.Get("search"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		respondError(w, http.StatusBadRequest, "Bad Request", "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		respondError(w, http.StatusBadRequest, "Bad Request", "offset must be an integer")
		return
	}
	if filter.Since, err = timeParam(q.Get("since")); err != nil {
		respondError(w, http.StatusBadRequest, "Bad Request", "since must be RFC3339")
		return
	}
	if filter.Until, err = timeParam(q.Get("until")); err != nil {
		respondError(w, http.StatusBadRequest, "Bad Request", "until must be RFC3339")
		return
	}

	filter.Limit = security.ClampPageSize(filter.Limit)
	jobs, total, err := s.jobs.ListJobs(r.Context(), filter)
	if err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	out := JobList{Jobs: make([]Job, 0, len(jobs)), Total: total, Limit: filter.Limit, Offset: filter.Offset}
	for _, j := range jobs {
		out.Jobs = append(out.Jobs, jobToWire(j))
	}
	respondJSON(w, http.StatusOK, out)
}

// getJob handles GET /v1/jobs/{id}
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	detail, err := s.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, detailToWire(detail))
}

type reviewBody struct {
	Decision core.Decision `json:"decision"`
	Notes    string        `json:"notes"`
	Reviewer string        `json:"reviewer"`
}

type reviewResponse struct {
	Job    Job    `json:"job"`
	Review Review `json:"review"`
}

// review handles POST /v1/jobs/{id}/review
func (s *Server) review(w http.ResponseWriter, r *http.Request) {
	var body reviewBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	out, err := s.reviewer.Review(r.Context(), review.Request{
		JobID:    chi.URLParam(r, "id"),
		Decision: body.Decision,
		Notes:    body.Notes,
		Reviewer: body.Reviewer,
	})
	if err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, reviewResponse{Job: jobToWire(out.Job), Review: reviewToWire(out.Review)})
}

// reprocess handles POST /v1/jobs/{id}/reprocess
func (s *Server) reprocess(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Reprocess(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, jobToWire(job))
}

// stats handles GET /v1/stats
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.jobs.Stats(r.Context())
	if err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// status handles GET /v1/ingestion/status
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	stats, err := s.jobs.Stats(r.Context())
	if err != nil {
		respondDomainError(w, s.logger, err)
		return
	}
	out := IngestionStatus{Stats: stats}
	if s.worker != nil {
		out.Running = s.worker.Running()
		out.WorkerID = s.worker.ID()
		out.InFlight = s.worker.InFlight()
		out.Processed = s.worker.Processed()
	}
	respondJSON(w, http.StatusOK, out)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func timeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
