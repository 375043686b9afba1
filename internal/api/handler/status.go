package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rowforge/rowforge/internal/api/response"
	"github.com/rowforge/rowforge/internal/processing"
	"github.com/rowforge/rowforge/internal/store"
	"github.com/rowforge/rowforge/internal/transform"
	"github.com/rowforge/rowforge/pkg/models"
)

// JobQuerier defines the read-side interface for job records.
type JobQuerier interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error)
	OpenResult(ctx context.Context, id uuid.UUID) (io.ReadCloser, *models.Job, error)
}

type jobResponse struct {
	JobID         string  `json:"job_id"`
	UserID        string  `json:"user_id"`
	FileName      string  `json:"file_name"`
	SizeBytes     int64   `json:"size_bytes"`
	Status        string  `json:"status"`
	Instruction   string  `json:"instruction,omitempty"`
	ModelResponse *string `json:"model_response,omitempty"`
	ResultReady   bool    `json:"result_ready"`
	ErrorMessage  *string `json:"error_message,omitempty"`
	CreatedAt     string  `json:"created_at"`
	StartedAt     *string `json:"started_at,omitempty"`
	CompletedAt   *string `json:"completed_at,omitempty"`
}

func toJobResponse(job *models.Job) jobResponse {
	resp := jobResponse{
		JobID:         job.ID.String(),
		UserID:        job.UserID,
		FileName:      job.FileName,
		SizeBytes:     job.SizeBytes,
		Status:        job.Status,
		Instruction:   job.Instruction,
		ModelResponse: job.ModelResponse,
		ResultReady:   job.Status == models.JobStatusCompleted && job.OutputPath != nil,
		ErrorMessage:  job.ErrorMessage,
		CreatedAt:     job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if job.StartedAt != nil {
		s := job.StartedAt.UTC().Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if job.CompletedAt != nil {
		s := job.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}

// NewJobStatusHandler returns an http.HandlerFunc for GET /api/v1/process/{jobID}.
func NewJobStatusHandler(svc JobQuerier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_JOB_ID",
				"Job id must be a UUID", nil)
			return
		}

		job, err := svc.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND",
					"No such job", nil)
				return
			}
			response.Error(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
				"Could not load the job record", nil)
			return
		}

		response.JSON(w, toJobResponse(job))
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/admin/jobs.
func NewListJobsHandler(svc JobQuerier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.JobFilter{
			UserID: q.Get("user_id"),
			Status: q.Get("status"),
		}
		if page, err := strconv.Atoi(q.Get("page")); err == nil {
			filter.Page = page
		}
		if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
			filter.Limit = limit
		}

		jobs, total, err := svc.ListJobs(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
				"Could not list job records", nil)
			return
		}

		items := make([]jobResponse, 0, len(jobs))
		for _, job := range jobs {
			items = append(items, toJobResponse(job))
		}

		page, limit := filter.Page, filter.Limit
		if page < 1 {
			page = 1
		}
		if limit < 1 {
			limit = 20
		}
		response.Collection(w, items, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

// NewResultHandler returns an http.HandlerFunc for GET /api/v1/process/{jobID}/result.
// Completed jobs stream the transformed file in the upload's format;
// anything else answers with the job's current state.
func NewResultHandler(svc JobQuerier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_JOB_ID",
				"Job id must be a UUID", nil)
			return
		}

		rc, job, err := svc.OpenResult(r.Context(), jobID)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND",
					"No such job", nil)
			case errors.Is(err, processing.ErrJobFailed):
				var reason any
				if job != nil && job.ErrorMessage != nil {
					reason = map[string]string{"reason": *job.ErrorMessage}
				}
				response.Error(w, http.StatusConflict, "JOB_FAILED",
					"The job failed and produced no result", reason)
			case errors.Is(err, processing.ErrResultNotReady):
				response.Error(w, http.StatusConflict, "JOB_NOT_READY",
					"The job has not completed yet", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Could not open the job result", nil)
			}
			return
		}
		defer rc.Close()

		format, ok := transform.DetectFormat(job.FileName)
		if !ok {
			format = transform.FormatCSV
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", "result_"+job.ID.String()+format.Ext()))
		if _, err := io.Copy(w, rc); err != nil {
			slog.Error("streaming result", "error", err, "job_id", job.ID)
		}
	}
}
