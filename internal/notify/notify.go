// Package notify publishes protocol lifecycle events after the mutation
// committed. Delivery is best-effort: a lost notification never affects a
// transition.
package notify

import (
	"context"
	"time"

	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
)

// EventKind discriminates lifecycle events.
type EventKind string

const (
	EventProtocolCreated EventKind = "PROTOCOL_CREATED"
	EventStatusChanged   EventKind = "STATUS_CHANGED"
)

// Event is one lifecycle notification.
type Event struct {
	Kind       EventKind     `json:"kind"`
	ProtocolID id.ProtocolID `json:"protocolId"`
	Number     string        `json:"number"`
	CitizenID  id.CitizenID  `json:"citizenId"`
	OldStatus  models.Status `json:"oldStatus,omitempty"`
	NewStatus  models.Status `json:"newStatus"`
	ActorRole  id.ActorRole  `json:"actorRole,omitempty"`
	Comment    string        `json:"comment,omitempty"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// Notifier publishes lifecycle events.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}
