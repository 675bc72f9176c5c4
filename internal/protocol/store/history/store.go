// Package history persists the append-only protocol history stream.
package history

import (
	"context"

	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
)

// Store appends and reads history entries. Entries are immutable once
// written; there is no update or delete.
type Store interface {
	// Append inserts an entry. Participates in an ambient transaction
	// when one is carried by the context.
	Append(ctx context.Context, entry *models.HistoryEntry) error

	// ListByProtocol returns a protocol's history newest first.
	ListByProtocol(ctx context.Context, protocolID id.ProtocolID) ([]*models.HistoryEntry, error)
}
