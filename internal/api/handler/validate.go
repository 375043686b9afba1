package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rowforge/rowforge/internal/api/response"
	"github.com/rowforge/rowforge/internal/gate"
)

// AccessChecker reports whether an identity currently has trial access.
type AccessChecker interface {
	Lookup(ctx context.Context, userID string) (bool, error)
}

// NewValidateHandler returns an http.HandlerFunc for POST /api/v1/users/validate.
// The check is read-only and does not consume trial quota.
func NewValidateHandler(g AccessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Invalid JSON body", nil)
			return
		}

		userID := strings.TrimSpace(req.UserID)
		allowed, err := g.Lookup(r.Context(), userID)
		if err != nil {
			if errors.Is(err, gate.ErrInvalidIdentity) {
				response.Error(w, http.StatusBadRequest, "INVALID_USER_ID",
					"user_id is malformed", nil)
				return
			}
			response.Error(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
				"Could not check trial access", nil)
			return
		}

		response.JSON(w, map[string]any{
			"user_id": userID,
			"allowed": allowed,
		})
	}
}
