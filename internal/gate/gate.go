// Package gate enforces trial access: a submission only proceeds when the
// submitting identity exists in the store with the grant flag set, and every
// allowed check counts against the identity's quota exactly once.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/rowforge/rowforge/internal/store"
	"github.com/rowforge/rowforge/pkg/models"
)

var (
	ErrInvalidIdentity = errors.New("invalid user id")
	ErrAccessDenied    = errors.New("trial access denied")
)

// MaxIdentityLen bounds submitted user ids; checked before any store access.
const MaxIdentityLen = 64

// Gate validates identities against the trial-access store.
type Gate struct {
	store store.Store
}

// New creates a Gate backed by the given store.
func New(s store.Store) *Gate {
	return &Gate{store: s}
}

// Check validates userID and, when allowed, increments the identity's access
// count and stamps the access time. The increment happens inside a single
// store statement, so concurrent checks for the same identity each count.
// Denied checks have no side effect.
func (g *Gate) Check(ctx context.Context, userID string) (*models.TrialUser, error) {
	if userID == "" || len(userID) > MaxIdentityLen {
		return nil, ErrInvalidIdentity
	}

	user, err := g.store.GrantAccess(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		// Unknown identity and revoked grant are indistinguishable to the
		// caller; neither leaves a trace in the store.
		return nil, ErrAccessDenied
	}
	if err != nil {
		return nil, fmt.Errorf("checking trial access: %w", err)
	}
	return user, nil
}

// Lookup reports whether userID currently has trial access, without
// consuming quota. Used by the read-only validation endpoint.
func (g *Gate) Lookup(ctx context.Context, userID string) (bool, error) {
	if userID == "" || len(userID) > MaxIdentityLen {
		return false, ErrInvalidIdentity
	}

	user, err := g.store.GetTrialUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up trial user: %w", err)
	}
	return user.Active && user.AccessGranted, nil
}
