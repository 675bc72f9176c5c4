package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"civicdesk/internal/citizen/models"
	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/sentinel"
)

// InMemory is a map-backed directory for tests and local development.
type InMemory struct {
	mu       sync.RWMutex
	citizens map[id.CitizenID]*models.Citizen
}

func NewInMemory() *InMemory {
	return &InMemory{citizens: make(map[id.CitizenID]*models.Citizen)}
}

// Put inserts or replaces a citizen record.
func (s *InMemory) Put(c *models.Citizen) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *c
	clone.DocumentNumber = models.NormalizeDocument(c.DocumentNumber)
	s.citizens[c.ID] = &clone
}

// Delete removes a citizen record.
func (s *InMemory) Delete(citizenID id.CitizenID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.citizens, citizenID)
}

func (s *InMemory) FindByID(_ context.Context, citizenID id.CitizenID) (*models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.citizens[citizenID]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByDocument(_ context.Context, document string) (*models.Citizen, error) {
	document = models.NormalizeDocument(document)
	if document == "" {
		return nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.citizens {
		if c.DocumentNumber == document {
			clone := *c
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByNameAndBirthDate(_ context.Context, name string, birthDate time.Time) (*models.Citizen, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.citizens {
		if c.BirthDate == nil {
			continue
		}
		sameDay := c.BirthDate.Year() == birthDate.Year() && c.BirthDate.YearDay() == birthDate.YearDay()
		if sameDay && strings.Contains(strings.ToLower(c.Name), name) {
			clone := *c
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
