package history

import (
	"context"
	"maps"
	"sort"
	"sync"

	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/sentinel"
)

// InMemory is a map-backed history store for tests and local development.
type InMemory struct {
	mu      sync.RWMutex
	entries map[id.HistoryID]*models.HistoryEntry
	// seq breaks ties between entries appended within the same tick
	seq   uint64
	order map[id.HistoryID]uint64
}

func NewInMemory() *InMemory {
	return &InMemory{
		entries: make(map[id.HistoryID]*models.HistoryEntry),
		order:   make(map[id.HistoryID]uint64),
	}
}

func (s *InMemory) Append(ctx context.Context, entry *models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.ID]; exists {
		return sentinel.ErrConflict
	}
	s.seq++
	s.entries[entry.ID] = cloneEntry(entry)
	s.order[entry.ID] = s.seq
	return nil
}

func (s *InMemory) ListByProtocol(ctx context.Context, protocolID id.ProtocolID) ([]*models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.HistoryEntry
	for _, entry := range s.entries {
		if entry.ProtocolID == protocolID {
			out = append(out, cloneEntry(entry))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.order[out[i].ID] > s.order[out[j].ID]
	})
	return out, nil
}

func cloneEntry(entry *models.HistoryEntry) *models.HistoryEntry {
	clone := *entry
	clone.Metadata = maps.Clone(entry.Metadata)
	return &clone
}
