package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/routewise/fieldsync/pkg/enums"
	"github.com/routewise/fieldsync/pkg/geo"
)

// SystemCorrelation is the sentinel trip/dispatch id for events that carry
// no unit-of-work context, such as logins.
const SystemCorrelation = "system"

// Identity is the who/what context stamped onto every captured event. It is
// supplied by the host's session layer at construction time.
type Identity struct {
	ActorID   string `json:"actor_id"`
	DeviceID  string `json:"device_id"`
	VehicleID string `json:"vehicle_id"`
}

// OperationalEvent is an immutable business fact. Corrections are modeled
// as new events, never as edits to an existing one.
type OperationalEvent struct {
	EventID    uuid.UUID       `json:"event_id"`
	Type       enums.EventType `json:"event_type"`
	ActorID    string          `json:"actor_id"`
	DeviceID   string          `json:"device_id"`
	VehicleID  string          `json:"vehicle_id"`
	TripID     string          `json:"trip_id"`
	DispatchID string          `json:"dispatch_id"`
	// Timestamp is device wall-clock time at the moment of the fact, not
	// at sync time.
	Timestamp time.Time       `json:"timestamp"`
	Geo       geo.Point       `json:"geo"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Envelope wraps an event with local sync bookkeeping. Synced flips to
// true exactly once, when the remote authority acknowledges receipt.
type Envelope struct {
	OperationalEvent
	Synced     bool `json:"synced"`
	RetryCount int  `json:"retry_count"`
}

// NewEnvelope wraps a freshly captured event for durable persistence.
func NewEnvelope(ev OperationalEvent) Envelope {
	return Envelope{OperationalEvent: ev}
}

// Correlation normalizes an empty trip or dispatch id to the sentinel.
func Correlation(id string) string {
	if id == "" {
		return SystemCorrelation
	}
	return id
}
