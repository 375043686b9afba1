package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job tracks one processing request from upload to a terminal state.
// The API returns a job id on POST /api/v1/process; the client polls
// GET /api/v1/process/{job_id} until status is completed or failed.
//
// OutputPath is set exactly when the job completes; CompletedAt is set
// when the job reaches either terminal state.
type Job struct {
	ID            uuid.UUID  `db:"id"             json:"id"`
	UserID        string     `db:"user_id"        json:"user_id"`
	FileName      string     `db:"file_name"      json:"file_name"`
	SizeBytes     int64      `db:"size_bytes"     json:"size_bytes"`
	Instruction   string     `db:"instruction"    json:"instruction"`
	Status        string     `db:"status"         json:"status"`
	InputPath     string     `db:"input_path"     json:"-"`
	OutputPath    *string    `db:"output_path"    json:"-"`
	ModelResponse *string    `db:"model_response" json:"model_response,omitempty"`
	ErrorMessage  *string    `db:"error_message"  json:"error_message,omitempty"`
	StartedAt     *time.Time `db:"started_at"     json:"started_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at"   json:"completed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"     json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
