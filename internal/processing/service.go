// Package processing orchestrates one job end to end: gate check, durable
// job record, background transform, terminal status with result or reason.
package processing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rowforge/rowforge/internal/cache"
	"github.com/rowforge/rowforge/internal/filestore"
	"github.com/rowforge/rowforge/internal/gate"
	"github.com/rowforge/rowforge/internal/metrics"
	"github.com/rowforge/rowforge/internal/store"
	"github.com/rowforge/rowforge/internal/transform"
	"github.com/rowforge/rowforge/pkg/models"
)

var (
	ErrResultNotReady = errors.New("job has not completed yet")
	ErrJobFailed      = errors.New("job failed")
)

const jobStatusTTL = 30 * time.Minute

// SubmitParams holds a validated submission.
type SubmitParams struct {
	UserID      string
	FileName    string
	Data        []byte
	Instruction string
}

// Service is the submission and query surface for processing jobs.
type Service struct {
	gate        *gate.Gate
	store       store.Store
	files       *filestore.FileStore
	transformer *transform.Transformer
	cache       cache.Cache
}

// NewService creates a processing Service.
func NewService(g *gate.Gate, st store.Store, files *filestore.FileStore, tr *transform.Transformer, ca cache.Cache) *Service {
	return &Service{
		gate:        g,
		store:       st,
		files:       files,
		transformer: tr,
		cache:       ca,
	}
}

// Submit runs the gate check, persists the input, creates a pending job and
// dispatches the transform in a background goroutine. Returns the job
// immediately without waiting for the transform to complete.
//
// When the gate denies, no job record is created and the gate error is
// returned as-is for the handler to map.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*models.Job, error) {
	format, ok := transform.DetectFormat(p.FileName)
	if !ok {
		return nil, transform.ErrUnsupportedFormat
	}

	if _, err := s.gate.Check(ctx, p.UserID); err != nil {
		if errors.Is(err, gate.ErrAccessDenied) || errors.Is(err, gate.ErrInvalidIdentity) {
			metrics.AccessChecksTotal.WithLabelValues("denied").Inc()
		}
		return nil, err
	}
	metrics.AccessChecksTotal.WithLabelValues("allowed").Inc()

	inputPath, err := s.files.Save(p.Data, p.FileName)
	if err != nil {
		return nil, fmt.Errorf("storing input: %w", err)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:          uuid.New(),
		UserID:      p.UserID,
		FileName:    p.FileName,
		SizeBytes:   int64(len(p.Data)),
		Instruction: p.Instruction,
		Status:      models.JobStatusPending,
		InputPath:   inputPath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	metrics.JobsTotal.WithLabelValues(models.JobStatusPending).Inc()

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, jobStatusTTL)

	go s.runJob(job.ID, inputPath, p.Instruction, format)

	return job, nil
}

// runJob performs the transform in a goroutine. It recovers from panics and
// always drives the job to a terminal state.
func (s *Service) runJob(jobID uuid.UUID, inputPath, instruction string, format transform.Format) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in runJob", "error", r, "job_id", jobID)
			s.fail(ctx, jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	// Flip to processing before the transform starts. A CAS failure here
	// means another actor already moved the job; that is a defect signal,
	// not a user error.
	if _, err := s.store.TransitionJob(ctx, jobID, models.JobStatusProcessing); err != nil {
		slog.Error("cannot start job", "error", err, "job_id", jobID)
		return
	}
	metrics.JobsTotal.WithLabelValues(models.JobStatusProcessing).Inc()
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusProcessing, jobStatusTTL)

	input, err := s.files.Read(inputPath)
	if err != nil {
		s.fail(ctx, jobID, fmt.Sprintf("reading input: %v", err))
		return
	}

	result, err := s.transformer.Run(ctx, input, format, instruction)
	if err != nil {
		s.fail(ctx, jobID, err.Error())
		return
	}

	outputPath, err := s.files.Save(result.Output, "result_"+jobID.String()+format.Ext())
	if err != nil {
		s.fail(ctx, jobID, fmt.Sprintf("storing output: %v", err))
		return
	}

	if _, err := s.store.TransitionJob(ctx, jobID, models.JobStatusCompleted,
		store.WithOutputPath(outputPath),
		store.WithModelResponse(result.ModelResponse)); err != nil {
		slog.Error("cannot complete job", "error", err, "job_id", jobID)
		return
	}
	metrics.JobsTotal.WithLabelValues(models.JobStatusCompleted).Inc()
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusCompleted, jobStatusTTL)
}

// fail records the reason verbatim and marks the job failed.
func (s *Service) fail(ctx context.Context, jobID uuid.UUID, reason string) {
	if _, err := s.store.TransitionJob(ctx, jobID, models.JobStatusFailed,
		store.WithErrorMessage(reason)); err != nil {
		slog.Error("cannot fail job", "error", err, "job_id", jobID, "reason", reason)
		return
	}
	metrics.JobsTotal.WithLabelValues(models.JobStatusFailed).Inc()
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, jobStatusTTL)
}

// GetJob returns the job in its current state; callers may poll non-terminal
// jobs. Never mutates.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return s.store.GetJob(ctx, id)
}

// ListJobs exposes the operator view of the job ledger.
func (s *Service) ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error) {
	return s.store.ListJobs(ctx, filter)
}

// OpenResult returns a stream of the output bytes for a completed job.
// The caller must close the reader.
func (s *Service) OpenResult(ctx context.Context, id uuid.UUID) (io.ReadCloser, *models.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	switch job.Status {
	case models.JobStatusCompleted:
		// fall through
	case models.JobStatusFailed:
		return nil, job, ErrJobFailed
	default:
		return nil, job, ErrResultNotReady
	}

	if job.OutputPath == nil {
		// Completed without output breaks the store invariant.
		return nil, job, fmt.Errorf("job %s completed without output", id)
	}

	f, err := s.files.Open(*job.OutputPath)
	if err != nil {
		return nil, job, fmt.Errorf("opening result: %w", err)
	}
	return f, job, nil
}
