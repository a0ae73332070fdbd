package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef records who triggered the event: the shopper for checkout
// and cancellation, the admin for status changes.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the versioned JSON document stored in
// outbox_events.payload and shipped to Pub/Sub as-is. Consumers key
// off eventId for dedupe and version for schema evolution.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
