package gate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rowforge/rowforge/internal/store"
	"github.com/rowforge/rowforge/pkg/models"
)

// --- mock store ---

type mockStore struct {
	users       map[string]*models.TrialUser
	grantCalls  int
	lookupCalls int
	storeErr    error
}

func newMockStore() *mockStore {
	return &mockStore{users: make(map[string]*models.TrialUser)}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) CreateTrialUser(_ context.Context, u *models.TrialUser) error {
	s.users[u.UserID] = u
	return nil
}

func (s *mockStore) GetTrialUser(_ context.Context, userID string) (*models.TrialUser, error) {
	s.lookupCalls++
	if s.storeErr != nil {
		return nil, s.storeErr
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (s *mockStore) GrantAccess(_ context.Context, userID string) (*models.TrialUser, error) {
	s.grantCalls++
	if s.storeErr != nil {
		return nil, s.storeErr
	}
	u, ok := s.users[userID]
	if !ok || !u.Active || !u.AccessGranted {
		return nil, store.ErrNotFound
	}
	u.AccessCount++
	now := time.Now().UTC()
	u.LastAccessAt = &now
	return u, nil
}

func (s *mockStore) CreateJob(_ context.Context, _ *models.Job) error { return nil }
func (s *mockStore) GetJob(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (s *mockStore) ListJobs(_ context.Context, _ store.JobFilter) ([]*models.Job, int, error) {
	return nil, 0, nil
}
func (s *mockStore) TransitionJob(_ context.Context, _ uuid.UUID, _ string, _ ...store.JobUpdateOption) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (s *mockStore) AddWaitlistEntry(_ context.Context, _ *models.WaitlistEntry) error { return nil }
func (s *mockStore) CountWaitlist(_ context.Context) (int, error)                      { return 0, nil }
func (s *mockStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *mockStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (s *mockStore) ListAPIKeys(_ context.Context) ([]*models.APIKey, error)   { return nil, nil }
func (s *mockStore) RevokeAPIKey(_ context.Context, _ uuid.UUID) error         { return nil }

var _ store.Store = (*mockStore)(nil)

func grantedUser(userID string) *models.TrialUser {
	return &models.TrialUser{
		ID:            uuid.New(),
		Email:         userID + "@example.com",
		UserID:        userID,
		Active:        true,
		AccessGranted: true,
		CreatedAt:     time.Now().UTC(),
	}
}

// --- Check ---

func TestCheck_Allowed(t *testing.T) {
	ms := newMockStore()
	ms.users["trial_ok"] = grantedUser("trial_ok")
	g := New(ms)

	user, err := g.Check(context.Background(), "trial_ok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.AccessCount != 1 {
		t.Errorf("expected access count 1, got %d", user.AccessCount)
	}
	if user.LastAccessAt == nil {
		t.Error("expected last access timestamp to be set")
	}
}

func TestCheck_CountsEveryAllowedCheck(t *testing.T) {
	ms := newMockStore()
	ms.users["trial_ok"] = grantedUser("trial_ok")
	g := New(ms)

	for i := 0; i < 3; i++ {
		if _, err := g.Check(context.Background(), "trial_ok"); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
	}
	if got := ms.users["trial_ok"].AccessCount; got != 3 {
		t.Errorf("expected access count 3, got %d", got)
	}
}

func TestCheck_UnknownIdentity(t *testing.T) {
	g := New(newMockStore())

	_, err := g.Check(context.Background(), "stranger")
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got: %v", err)
	}
}

func TestCheck_GrantRevoked(t *testing.T) {
	ms := newMockStore()
	u := grantedUser("trial_blocked")
	u.AccessGranted = false
	ms.users["trial_blocked"] = u
	g := New(ms)

	_, err := g.Check(context.Background(), "trial_blocked")
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got: %v", err)
	}
	if u.AccessCount != 0 {
		t.Errorf("denied check must not touch the quota, count = %d", u.AccessCount)
	}
}

func TestCheck_EmptyIdentity(t *testing.T) {
	ms := newMockStore()
	g := New(ms)

	_, err := g.Check(context.Background(), "")
	if !errors.Is(err, ErrInvalidIdentity) {
		t.Errorf("expected ErrInvalidIdentity, got: %v", err)
	}
	if ms.grantCalls != 0 {
		t.Error("malformed identity must be rejected before any store access")
	}
}

func TestCheck_OversizedIdentity(t *testing.T) {
	ms := newMockStore()
	g := New(ms)

	_, err := g.Check(context.Background(), strings.Repeat("x", MaxIdentityLen+1))
	if !errors.Is(err, ErrInvalidIdentity) {
		t.Errorf("expected ErrInvalidIdentity, got: %v", err)
	}
	if ms.grantCalls != 0 {
		t.Error("malformed identity must be rejected before any store access")
	}
}

func TestCheck_StoreUnavailable(t *testing.T) {
	ms := newMockStore()
	ms.storeErr = errors.New("connection refused")
	g := New(ms)

	_, err := g.Check(context.Background(), "trial_ok")
	if err == nil || errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrInvalidIdentity) {
		t.Errorf("store failure must surface as a distinct error, got: %v", err)
	}
}

// --- Lookup ---

func TestLookup_Granted(t *testing.T) {
	ms := newMockStore()
	ms.users["trial_ok"] = grantedUser("trial_ok")
	g := New(ms)

	allowed, err := g.Lookup(context.Background(), "trial_ok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("expected allowed")
	}
	if ms.grantCalls != 0 {
		t.Error("lookup must not consume quota")
	}
}

func TestLookup_Unknown(t *testing.T) {
	g := New(newMockStore())

	allowed, err := g.Lookup(context.Background(), "stranger")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("expected not allowed")
	}
}
