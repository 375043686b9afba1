package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rowforge/rowforge/internal/api/response"
	"github.com/rowforge/rowforge/internal/gate"
	"github.com/rowforge/rowforge/internal/processing"
	"github.com/rowforge/rowforge/internal/transform"
	"github.com/rowforge/rowforge/pkg/models"
)

// JobSubmitter defines the submission interface the handler depends on.
type JobSubmitter interface {
	Submit(ctx context.Context, p processing.SubmitParams) (*models.Job, error)
}

// NewSubmitHandler returns an http.HandlerFunc for POST /api/v1/process.
// It accepts a multipart form with a "file" part, a "user_id" field and an
// optional "prompt" field, and answers 202 with the created job.
func NewSubmitHandler(svc JobSubmitter, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
					"Uploaded file exceeds the size limit", map[string]int64{"max_bytes": maxUploadBytes})
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Request must be a multipart form", nil)
			return
		}

		userID := strings.TrimSpace(r.FormValue("user_id"))
		if userID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_USER_ID",
				"user_id is required", nil)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"A file part named 'file' is required", nil)
			return
		}
		defer file.Close()

		if _, ok := transform.DetectFormat(header.Filename); !ok {
			response.Error(w, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE",
				"Only .csv and .xlsx files are accepted", nil)
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
					"Uploaded file exceeds the size limit", map[string]int64{"max_bytes": maxUploadBytes})
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Failed to read uploaded file", nil)
			return
		}
		if len(data) == 0 {
			response.Error(w, http.StatusBadRequest, "EMPTY_FILE",
				"Uploaded file is empty", nil)
			return
		}

		job, err := svc.Submit(r.Context(), processing.SubmitParams{
			UserID:      userID,
			FileName:    header.Filename,
			Data:        data,
			Instruction: strings.TrimSpace(r.FormValue("prompt")),
		})
		if err != nil {
			switch {
			case errors.Is(err, gate.ErrInvalidIdentity):
				response.Error(w, http.StatusBadRequest, "INVALID_USER_ID",
					"user_id is malformed", nil)
			case errors.Is(err, transform.ErrUnsupportedFormat):
				response.Error(w, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE",
					"Only .csv and .xlsx files are accepted", nil)
			case errors.Is(err, gate.ErrAccessDenied):
				response.Error(w, http.StatusForbidden, "ACCESS_DENIED",
					"Trial access is not granted for this user", nil)
			default:
				response.Error(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
					"Could not record the submission, try again later", nil)
			}
			return
		}

		response.Accepted(w, map[string]string{
			"job_id": job.ID.String(),
			"status": job.Status,
		})
	}
}
