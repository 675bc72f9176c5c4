// Package store provides access to the family composition graph: labeled
// one-hop edges between a household owner and its members, used to verify
// declared relationships when resolving citizen links.
package store

import (
	"context"

	id "civicdesk/pkg/domain"
)

// Store looks up family composition edges.
type Store interface {
	// Relationship returns the label of the edge from owner to member
	// (for example "FILHO" or "CONJUGE"). Returns sentinel.ErrNotFound
	// when the member is not part of the owner's family composition.
	Relationship(ctx context.Context, ownerID, memberID id.CitizenID) (string, error)
}
