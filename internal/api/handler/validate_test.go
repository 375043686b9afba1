package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rowforge/rowforge/internal/gate"
	"github.com/stretchr/testify/assert"
)

type mockChecker struct {
	allowed bool
	err     error
	lastID  string
}

func (m *mockChecker) Lookup(_ context.Context, userID string) (bool, error) {
	m.lastID = userID
	return m.allowed, m.err
}

func validateReq(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/users/validate", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestValidate_Allowed(t *testing.T) {
	g := &mockChecker{allowed: true}
	h := NewValidateHandler(g)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, validateReq(`{"user_id":"trial_abc"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, true, data["allowed"])
	assert.Equal(t, "trial_abc", g.lastID)
}

func TestValidate_NotAllowed(t *testing.T) {
	h := NewValidateHandler(&mockChecker{allowed: false})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, validateReq(`{"user_id":"trial_unknown"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, false, data["allowed"])
}

func TestValidate_InvalidIdentity(t *testing.T) {
	h := NewValidateHandler(&mockChecker{err: gate.ErrInvalidIdentity})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, validateReq(`{"user_id":""}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	errObj := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "INVALID_USER_ID", errObj["code"])
}

func TestValidate_BadJSON(t *testing.T) {
	h := NewValidateHandler(&mockChecker{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, validateReq(`{`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	errObj := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "INVALID_REQUEST", errObj["code"])
}
