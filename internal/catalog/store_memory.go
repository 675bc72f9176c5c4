package catalog

import (
	"context"
	"sync"

	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/sentinel"
)

// InMemory is a map-backed catalog for tests and local development.
type InMemory struct {
	mu       sync.RWMutex
	services map[id.ServiceID]*models.Service
}

func NewInMemory() *InMemory {
	return &InMemory{services: make(map[id.ServiceID]*models.Service)}
}

// Put registers a service, replacing any previous entry.
func (s *InMemory) Put(service *models.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *service
	s.services[service.ID] = &clone
}

func (s *InMemory) Get(ctx context.Context, serviceID id.ServiceID) (*models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	service, ok := s.services[serviceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *service
	return &clone, nil
}
