package models

import (
	"time"

	"github.com/google/uuid"
)

// WaitlistEntry is a signup captured when trial access is denied.
type WaitlistEntry struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Email     string    `db:"email"      json:"email"`
	Notified  bool      `db:"notified"   json:"notified"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
