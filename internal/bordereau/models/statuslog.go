package models

import (
	"time"

	"github.com/google/uuid"
)

// StatusLog is the append-only audit record written exactly once per committed
// status transition. UpdatedFields holds a sparse diff restricted to the
// triggering event's field whitelist; it is never mutated after insert.
type StatusLog struct {
	ID       uuid.UUID
	FormID   uuid.UUID
	UserID   uuid.UUID
	AuthType string
	Status   Status
	LoggedAt time.Time
	// UpdatedFields is serialized as JSON by the store.
	UpdatedFields map[string]any
}
