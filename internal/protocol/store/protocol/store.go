// Package protocol persists the protocol aggregate.
package protocol

import (
	"context"
	"time"

	citizenmodels "civicdesk/internal/citizen/models"
	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
)

// Loaded is a protocol with the context a transition decision needs: the
// catalog service it was opened against and the owning citizen.
type Loaded struct {
	Protocol models.Protocol
	Service  models.Service
	Citizen  citizenmodels.Citizen
}

// StatusChange is the mutation a successful transition applies. The write
// lands only if the row still carries ExpectedStatus, so a verdict computed
// against a status that has since moved on never commits.
type StatusChange struct {
	ExpectedStatus models.Status
	NewStatus      models.Status
	UpdatedAt      time.Time
	ConcludedAt    *time.Time // set when entering a terminal status, nil otherwise
}

// Store persists protocols. Mutating methods participate in an ambient
// transaction when one is carried by the context.
type Store interface {
	// Create inserts a protocol. sentinel.ErrConflict on a duplicate
	// number or id.
	Create(ctx context.Context, protocol *models.Protocol) error

	// Get returns a protocol by id, sentinel.ErrNotFound when absent.
	Get(ctx context.Context, protocolID id.ProtocolID) (*models.Protocol, error)

	// GetByNumber returns a protocol by its user-visible number.
	GetByNumber(ctx context.Context, number string) (*models.Protocol, error)

	// GetLoaded returns a protocol joined with its service and citizen.
	GetLoaded(ctx context.Context, protocolID id.ProtocolID) (*Loaded, error)

	// UpdateStatus applies a status change. sentinel.ErrConflict when the
	// protocol no longer carries change.ExpectedStatus. Clears concluded_at
	// when the change carries none, so leaving a terminal status resets it.
	UpdateStatus(ctx context.Context, protocolID id.ProtocolID, change StatusChange) error

	// ListByCitizen returns a citizen's protocols newest first.
	ListByCitizen(ctx context.Context, citizenID id.CitizenID) ([]*models.Protocol, error)
}
