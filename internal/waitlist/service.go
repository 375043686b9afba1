package waitlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rowforge/rowforge/internal/cache"
	"github.com/rowforge/rowforge/internal/store"
	"github.com/rowforge/rowforge/pkg/models"
)

var (
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrAlreadyJoined = errors.New("email already on the waitlist")
)

// countTTL bounds how stale the cached signup count may get.
const countTTL = 60 * time.Second

// Service manages waitlist signups for users without trial access.
type Service struct {
	store store.Store
	cache cache.Cache
}

func NewService(st store.Store, ca cache.Cache) *Service {
	return &Service{store: st, cache: ca}
}

// Join records a signup. The email is normalized to lowercase before
// storage so the unique constraint treats case variants as one address.
func (s *Service) Join(ctx context.Context, email string) (*models.WaitlistEntry, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	entry := &models.WaitlistEntry{
		ID:        uuid.New(),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AddWaitlistEntry(ctx, entry); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, ErrAlreadyJoined
		}
		return nil, fmt.Errorf("adding waitlist entry: %w", err)
	}

	// Invalidate the cached count; the next Stats call repopulates it.
	if err := s.cache.Delete(ctx, cache.WaitlistCountKey()); err != nil {
		slog.Warn("failed to invalidate waitlist count cache", "error", err)
	}

	return entry, nil
}

// Stats returns the total signup count, served from cache when fresh.
func (s *Service) Stats(ctx context.Context) (int, error) {
	if raw, ok, err := s.cache.Get(ctx, cache.WaitlistCountKey()); err == nil && ok {
		if count, perr := strconv.Atoi(string(raw)); perr == nil {
			return count, nil
		}
	} else if err != nil {
		slog.Warn("waitlist count cache read failed", "error", err)
	}

	count, err := s.store.CountWaitlist(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting waitlist: %w", err)
	}

	if err := s.cache.Set(ctx, cache.WaitlistCountKey(), []byte(strconv.Itoa(count)), countTTL); err != nil {
		slog.Warn("failed to cache waitlist count", "error", err)
	}

	return count, nil
}
