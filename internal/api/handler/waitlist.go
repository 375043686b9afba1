package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rowforge/rowforge/internal/api/response"
	"github.com/rowforge/rowforge/internal/waitlist"
	"github.com/rowforge/rowforge/pkg/models"
)

// WaitlistService covers the signup operations the handlers need.
type WaitlistService interface {
	Join(ctx context.Context, email string) (*models.WaitlistEntry, error)
	Stats(ctx context.Context) (int, error)
}

// NewWaitlistJoinHandler returns an http.HandlerFunc for POST /api/v1/waitlist/join.
func NewWaitlistJoinHandler(svc WaitlistService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Invalid JSON body", nil)
			return
		}

		entry, err := svc.Join(r.Context(), req.Email)
		if err != nil {
			switch {
			case errors.Is(err, waitlist.ErrInvalidEmail):
				response.Error(w, http.StatusBadRequest, "INVALID_EMAIL",
					"A valid email address is required", nil)
			case errors.Is(err, waitlist.ErrAlreadyJoined):
				response.Error(w, http.StatusConflict, "ALREADY_ON_WAITLIST",
					"This email is already on the waitlist", nil)
			default:
				response.Error(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
					"Could not record the signup, try again later", nil)
			}
			return
		}

		// Count failures must not turn a recorded signup into an error.
		total, err := svc.Stats(r.Context())
		if err != nil {
			total = 0
		}

		response.Created(w, map[string]any{
			"id":    entry.ID.String(),
			"email": entry.Email,
			"total": total,
		})
	}
}

// NewWaitlistStatsHandler returns an http.HandlerFunc for GET /api/v1/waitlist/stats.
func NewWaitlistStatsHandler(svc WaitlistService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		total, err := svc.Stats(r.Context())
		if err != nil {
			response.Error(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
				"Could not count signups", nil)
			return
		}
		response.JSON(w, map[string]int{"total": total})
	}
}
