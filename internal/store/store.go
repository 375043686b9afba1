package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rowforge/rowforge/pkg/models"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateKey      = errors.New("duplicate key violation")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateTrialUser(ctx context.Context, user *models.TrialUser) error
	GetTrialUser(ctx context.Context, userID string) (*models.TrialUser, error)
	// GrantAccess atomically increments the access count and stamps the
	// access time for an active, granted identity in a single statement.
	// Returns ErrNotFound when no such identity is eligible.
	GrantAccess(ctx context.Context, userID string) (*models.TrialUser, error)

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)
	// TransitionJob moves a job along the status state machine using a
	// compare-and-swap on the current status. The expected source state is
	// derived from the target; any request whose edge is not in the table,
	// or whose CAS finds a different current status, fails with
	// ErrInvalidTransition.
	TransitionJob(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) (*models.Job, error)

	AddWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry) error
	CountWaitlist(ctx context.Context) (int, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

// JobFilter narrows and paginates ListJobs.
type JobFilter struct {
	UserID string
	Status string
	Since  time.Time
	Page   int
	Limit  int
}

type JobUpdate struct {
	OutputPath    *string
	ModelResponse *string
	ErrorMessage  *string
}

type JobUpdateOption func(*JobUpdate)

func WithOutputPath(path string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.OutputPath = &path
	}
}

func WithModelResponse(resp string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.ModelResponse = &resp
	}
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.ErrorMessage = &msg
	}
}
