package store

import (
	"context"

	"civicdesk/internal/citizenlink/models"
	id "civicdesk/pkg/domain"
)

// LinkUpdate carries the mutable fields of a link. Nil fields are left
// unchanged.
type LinkUpdate struct {
	LinkType     *models.LinkType
	Role         *models.Role
	Relationship *string
	ContextData  map[string]any
}

// Store persists protocol citizen links.
type Store interface {
	// Create inserts a link. Participates in an ambient transaction
	// when one is carried by the context.
	Create(ctx context.Context, link *models.Link) error

	// Get returns a link by id, sentinel.ErrNotFound when absent.
	Get(ctx context.Context, linkID id.LinkID) (*models.Link, error)

	// ListByProtocol returns a protocol's links oldest first.
	ListByProtocol(ctx context.Context, protocolID id.ProtocolID) ([]*models.Link, error)

	// Update applies a partial update, sentinel.ErrNotFound when absent.
	Update(ctx context.Context, linkID id.LinkID, update LinkUpdate) (*models.Link, error)

	// Delete removes a link, sentinel.ErrNotFound when absent.
	Delete(ctx context.Context, linkID id.LinkID) error
}
