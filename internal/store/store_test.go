package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rowforge/rowforge/internal/store"
	"github.com/rowforge/rowforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("rowforge_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func createUser(t *testing.T, s store.Store, userID string, granted bool) *models.TrialUser {
	t.Helper()
	user := &models.TrialUser{
		ID:            uuid.New(),
		Email:         userID + "@example.com",
		UserID:        userID,
		Active:        true,
		AccessGranted: granted,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, s.CreateTrialUser(context.Background(), user))
	return user
}

func createJob(t *testing.T, s store.Store, userID string) *models.Job {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	job := &models.Job{
		ID:        uuid.New(),
		UserID:    userID,
		FileName:  "data.csv",
		SizeBytes: 128,
		Status:    models.JobStatusPending,
		InputPath: "data_1_x.csv",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateJob(context.Background(), job))
	return job
}

// --- Trial User Tests ---

func TestTrialUser_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	created := createUser(t, s, "trial_abc", true)

	user, err := s.GetTrialUser(ctx, "trial_abc")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, "trial_abc@example.com", user.Email)
	assert.True(t, user.AccessGranted)
	assert.Equal(t, 0, user.AccessCount)
	assert.Nil(t, user.LastAccessAt)
}

func TestTrialUser_GetUnknown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetTrialUser(context.Background(), "trial_nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTrialUser_DuplicateUserID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createUser(t, s, "trial_dup", true)

	err := s.CreateTrialUser(ctx, &models.TrialUser{
		ID:        uuid.New(),
		Email:     "other@example.com",
		UserID:    "trial_dup",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestGrantAccess_IncrementsCount(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createUser(t, s, "trial_abc", true)

	user, err := s.GrantAccess(ctx, "trial_abc")
	require.NoError(t, err)
	assert.Equal(t, 1, user.AccessCount)
	require.NotNil(t, user.LastAccessAt)

	user, err = s.GrantAccess(ctx, "trial_abc")
	require.NoError(t, err)
	assert.Equal(t, 2, user.AccessCount)
}

func TestGrantAccess_DeniedHasNoSideEffect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createUser(t, s, "trial_blocked", false)

	_, err := s.GrantAccess(ctx, "trial_blocked")
	assert.ErrorIs(t, err, store.ErrNotFound)

	user, err := s.GetTrialUser(ctx, "trial_blocked")
	require.NoError(t, err)
	assert.Equal(t, 0, user.AccessCount)
	assert.Nil(t, user.LastAccessAt)
}

func TestGrantAccess_UnknownUser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GrantAccess(context.Background(), "trial_nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// Concurrent checks for one identity must each count exactly once.
func TestGrantAccess_ConcurrentIncrements(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createUser(t, s, "trial_hot", true)

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.GrantAccess(ctx, "trial_hot")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	user, err := s.GetTrialUser(ctx, "trial_hot")
	require.NoError(t, err)
	assert.Equal(t, n, user.AccessCount)
}

// --- Job Tests ---

func TestJob_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createUser(t, s, "trial_abc", true)
	created := createJob(t, s, "trial_abc")

	job, err := s.GetJob(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, job.ID)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Nil(t, job.OutputPath)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)
}

func TestJob_GetUnknown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransitionJob_HappyPathToCompleted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createUser(t, s, "trial_abc", true)
	job := createJob(t, s, "trial_abc")

	started, err := s.TransitionJob(ctx, job.ID, models.JobStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, started.Status)
	require.NotNil(t, started.StartedAt)
	assert.Nil(t, started.CompletedAt)

	done, err := s.TransitionJob(ctx, job.ID, models.JobStatusCompleted,
		store.WithOutputPath("result_x.csv"),
		store.WithModelResponse("append done column"))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	require.NotNil(t, done.OutputPath)
	assert.Equal(t, "result_x.csv", *done.OutputPath)
	require.NotNil(t, done.ModelResponse)
	require.NotNil(t, done.CompletedAt)
}

func TestTransitionJob_HappyPathToFailed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createUser(t, s, "trial_abc", true)
	job := createJob(t, s, "trial_abc")

	_, err := s.TransitionJob(ctx, job.ID, models.JobStatusProcessing)
	require.NoError(t, err)

	failed, err := s.TransitionJob(ctx, job.ID, models.JobStatusFailed,
		store.WithErrorMessage("malformed input: wrong number of fields"))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "malformed input")
	assert.Nil(t, failed.OutputPath)
	require.NotNil(t, failed.CompletedAt)
}

func TestTransitionJob_InvalidEdges(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createUser(t, s, "trial_abc", true)

	// pending -> completed skips processing
	job := createJob(t, s, "trial_abc")
	_, err := s.TransitionJob(ctx, job.ID, models.JobStatusCompleted)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	// pending -> failed skips processing
	_, err = s.TransitionJob(ctx, job.ID, models.JobStatusFailed)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	// terminal states have no outgoing edges
	_, err = s.TransitionJob(ctx, job.ID, models.JobStatusProcessing)
	require.NoError(t, err)
	_, err = s.TransitionJob(ctx, job.ID, models.JobStatusCompleted)
	require.NoError(t, err)
	_, err = s.TransitionJob(ctx, job.ID, models.JobStatusProcessing)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	// pending is never a valid target
	other := createJob(t, s, "trial_abc")
	_, err = s.TransitionJob(ctx, other.ID, models.JobStatusPending)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestTransitionJob_UnknownJob(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.TransitionJob(context.Background(), uuid.New(), models.JobStatusProcessing)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// Two racing transitions on the same edge: exactly one wins the CAS.
func TestTransitionJob_ConcurrentCAS(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createUser(t, s, "trial_abc", true)
	job := createJob(t, s, "trial_abc")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.TransitionJob(ctx, job.ID, models.JobStatusProcessing)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, store.ErrInvalidTransition)
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, losses)
}

func TestListJobs_FilterAndPagination(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createUser(t, s, "trial_a", true)
	createUser(t, s, "trial_b", true)

	for i := 0; i < 3; i++ {
		createJob(t, s, "trial_a")
	}
	bJob := createJob(t, s, "trial_b")
	_, err := s.TransitionJob(ctx, bJob.ID, models.JobStatusProcessing)
	require.NoError(t, err)

	jobs, total, err := s.ListJobs(ctx, store.JobFilter{UserID: "trial_a"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, jobs, 3)

	jobs, total, err = s.ListJobs(ctx, store.JobFilter{Status: models.JobStatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, bJob.ID, jobs[0].ID)

	jobs, total, err = s.ListJobs(ctx, store.JobFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, jobs, 2)

	jobs, _, err = s.ListJobs(ctx, store.JobFilter{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

// --- Waitlist Tests ---

func TestWaitlist_AddAndCount(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	err := s.AddWaitlistEntry(ctx, &models.WaitlistEntry{
		ID:        uuid.New(),
		Email:     "a@example.com",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	err = s.AddWaitlistEntry(ctx, &models.WaitlistEntry{
		ID:        uuid.New(),
		Email:     "a@example.com",
		CreatedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	count, err := s.CountWaitlist(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// --- API Key Tests ---

func TestAPIKey_CreateAndGetByPrefix(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "ops-key",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "rf_abcd1",
		Scopes:    []string{"admin"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	keys, err := s.GetAPIKeyByPrefix(ctx, "rf_abcd1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, []string{"admin"}, keys[0].Scopes)
}

func TestAPIKey_Revoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "short-lived",
		KeyHash:   "hash",
		KeyPrefix: "rf_gone1",
		Scopes:    []string{"read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID))

	// Revoked keys disappear from prefix lookup and listing.
	keys, err := s.GetAPIKeyByPrefix(ctx, "rf_gone1")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Revoking twice reports not found.
	assert.ErrorIs(t, s.RevokeAPIKey(ctx, key.ID), store.ErrNotFound)
}

func TestAPIKey_UpdateLastUsed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "used-key",
		KeyHash:   "hash",
		KeyPrefix: "rf_used1",
		Scopes:    []string{"read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))
	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))

	keys, err := s.GetAPIKeyByPrefix(ctx, "rf_used1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)
}
