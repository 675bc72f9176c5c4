package store

import (
	"context"
	"maps"
	"sort"
	"sync"

	"civicdesk/internal/citizenlink/models"
	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/sentinel"
)

// InMemory is a map-backed link store for tests and local development.
type InMemory struct {
	mu    sync.RWMutex
	links map[id.LinkID]*models.Link
}

func NewInMemory() *InMemory {
	return &InMemory{links: make(map[id.LinkID]*models.Link)}
}

func (s *InMemory) Create(ctx context.Context, link *models.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.links[link.ID]; exists {
		return sentinel.ErrConflict
	}
	s.links[link.ID] = cloneLink(link)
	return nil
}

func (s *InMemory) Get(ctx context.Context, linkID id.LinkID) (*models.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[linkID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneLink(link), nil
}

func (s *InMemory) ListByProtocol(ctx context.Context, protocolID id.ProtocolID) ([]*models.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Link
	for _, link := range s.links {
		if link.ProtocolID == protocolID {
			out = append(out, cloneLink(link))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) Update(ctx context.Context, linkID id.LinkID, update LinkUpdate) (*models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[linkID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if update.LinkType != nil {
		link.LinkType = *update.LinkType
	}
	if update.Role != nil {
		link.Role = *update.Role
	}
	if update.Relationship != nil {
		link.Relationship = *update.Relationship
	}
	if update.ContextData != nil {
		link.ContextData = maps.Clone(update.ContextData)
	}
	return cloneLink(link), nil
}

func (s *InMemory) Delete(ctx context.Context, linkID id.LinkID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[linkID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.links, linkID)
	return nil
}

func cloneLink(link *models.Link) *models.Link {
	clone := *link
	clone.ContextData = maps.Clone(link.ContextData)
	if link.VerifiedAt != nil {
		t := *link.VerifiedAt
		clone.VerifiedAt = &t
	}
	if link.VerifiedBy != nil {
		u := *link.VerifiedBy
		clone.VerifiedBy = &u
	}
	return &clone
}
