package store

import (
	"context"
	"sync"

	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/sentinel"
)

type edgeKey struct {
	owner  id.CitizenID
	member id.CitizenID
}

// InMemory is a map-backed family graph for tests and local development.
type InMemory struct {
	mu    sync.RWMutex
	edges map[edgeKey]string
}

func NewInMemory() *InMemory {
	return &InMemory{edges: make(map[edgeKey]string)}
}

// AddMember records member as part of owner's family with the given
// relationship label, replacing any previous label.
func (s *InMemory) AddMember(ownerID, memberID id.CitizenID, relationship string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[edgeKey{owner: ownerID, member: memberID}] = relationship
}

func (s *InMemory) Relationship(ctx context.Context, ownerID, memberID id.CitizenID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.edges[edgeKey{owner: ownerID, member: memberID}]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return rel, nil
}
