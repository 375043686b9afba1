package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rowforge/rowforge/internal/api/response"
	"github.com/rowforge/rowforge/internal/gate"
	"github.com/rowforge/rowforge/internal/store"
	"github.com/rowforge/rowforge/pkg/models"
)

// NewCreateUserHandler returns an http.HandlerFunc for POST /api/v1/admin/users.
// Operators provision trial identities here; the public surface never
// creates users.
func NewCreateUserHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email         string `json:"email"`
			UserID        string `json:"user_id"`
			AccessGranted bool   `json:"access_granted"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Invalid JSON body", nil)
			return
		}

		if _, err := mail.ParseAddress(req.Email); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_EMAIL",
				"A valid email address is required", nil)
			return
		}
		userID := strings.TrimSpace(req.UserID)
		if userID == "" || len(userID) > gate.MaxIdentityLen {
			response.Error(w, http.StatusBadRequest, "INVALID_USER_ID",
				"user_id is required and at most 64 characters", nil)
			return
		}

		user := &models.TrialUser{
			ID:            uuid.New(),
			Email:         strings.ToLower(req.Email),
			UserID:        userID,
			Active:        true,
			AccessGranted: req.AccessGranted,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.CreateTrialUser(r.Context(), user); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, "USER_EXISTS",
					"A trial user with this id or email already exists", nil)
				return
			}
			response.Error(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
				"Could not create the trial user", nil)
			return
		}

		response.Created(w, user)
	}
}

// NewGetUserHandler returns an http.HandlerFunc for GET /api/v1/admin/users/{userID}.
func NewGetUserHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		user, err := s.GetTrialUser(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "USER_NOT_FOUND",
					"No such trial user", nil)
				return
			}
			response.Error(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
				"Could not load the trial user", nil)
			return
		}

		response.JSON(w, user)
	}
}
