// Package models contains shared data models used across the RowForge codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// TrialUser is a gated trial identity. The opaque UserID is what clients
// submit; the row ID is internal. AccessCount is only ever mutated by the
// access gate and never decreases.
type TrialUser struct {
	ID            uuid.UUID  `db:"id"              json:"id"`
	Email         string     `db:"email"           json:"email"`
	UserID        string     `db:"user_id"         json:"user_id"`
	Active        bool       `db:"active"          json:"active"`
	AccessGranted bool       `db:"access_granted"  json:"access_granted"`
	AccessCount   int        `db:"access_count"    json:"access_count"`
	LastAccessAt  *time.Time `db:"last_access_at"  json:"last_access_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at"      json:"created_at"`
}
