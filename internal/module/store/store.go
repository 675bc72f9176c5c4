// Package store updates the lifecycle columns of module side records: the
// per-department rows (enrollments, appointments, applications) that a
// protocol materializes when its service routes to a module.
package store

import (
	"context"

	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
)

// State is the lifecycle state of a module side record.
type State string

const (
	StateActive    State = "ACTIVE"
	StatePending   State = "PENDING"
	StateCompleted State = "COMPLETED"
	StateCancelled State = "CANCELLED"
)

// EntityStore mutates module side records keyed by protocol id.
type EntityStore interface {
	// UpdateState sets the lifecycle state of the module's record for
	// the protocol and returns the number of rows matched. Zero rows
	// means the module never materialized a record for this protocol;
	// that is not an error. Participates in an ambient transaction when
	// one is carried by the context.
	UpdateState(ctx context.Context, module models.ModuleType, protocolID id.ProtocolID, state State) (int64, error)
}
