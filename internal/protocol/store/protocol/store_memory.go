package protocol

import (
	"context"
	"maps"
	"sort"
	"sync"

	"civicdesk/internal/catalog"
	citizenstore "civicdesk/internal/citizen/store"
	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/sentinel"
)

// InMemory is a map-backed protocol store for tests and local development.
// Loaded reads resolve the service and citizen through the injected
// catalog and directory.
type InMemory struct {
	mu        sync.RWMutex
	protocols map[id.ProtocolID]*models.Protocol
	byNumber  map[string]id.ProtocolID

	services catalog.Store
	citizens citizenstore.Directory
}

func NewInMemory(services catalog.Store, citizens citizenstore.Directory) *InMemory {
	return &InMemory{
		protocols: make(map[id.ProtocolID]*models.Protocol),
		byNumber:  make(map[string]id.ProtocolID),
		services:  services,
		citizens:  citizens,
	}
}

func (s *InMemory) Create(ctx context.Context, protocol *models.Protocol) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.protocols[protocol.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byNumber[protocol.Number]; exists {
		return sentinel.ErrConflict
	}
	s.protocols[protocol.ID] = cloneProtocol(protocol)
	s.byNumber[protocol.Number] = protocol.ID
	return nil
}

func (s *InMemory) Get(ctx context.Context, protocolID id.ProtocolID) (*models.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	protocol, ok := s.protocols[protocolID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneProtocol(protocol), nil
}

func (s *InMemory) GetByNumber(ctx context.Context, number string) (*models.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	protocolID, ok := s.byNumber[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneProtocol(s.protocols[protocolID]), nil
}

func (s *InMemory) GetLoaded(ctx context.Context, protocolID id.ProtocolID) (*Loaded, error) {
	protocol, err := s.Get(ctx, protocolID)
	if err != nil {
		return nil, err
	}
	service, err := s.services.Get(ctx, protocol.ServiceID)
	if err != nil {
		return nil, err
	}
	citizen, err := s.citizens.FindByID(ctx, protocol.CitizenID)
	if err != nil {
		return nil, err
	}
	return &Loaded{Protocol: *protocol, Service: *service, Citizen: *citizen}, nil
}

func (s *InMemory) UpdateStatus(ctx context.Context, protocolID id.ProtocolID, change StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	protocol, ok := s.protocols[protocolID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if protocol.Status != change.ExpectedStatus {
		return sentinel.ErrConflict
	}
	protocol.Status = change.NewStatus
	protocol.UpdatedAt = change.UpdatedAt
	protocol.ConcludedAt = nil
	if change.ConcludedAt != nil {
		t := *change.ConcludedAt
		protocol.ConcludedAt = &t
	}
	return nil
}

func (s *InMemory) ListByCitizen(ctx context.Context, citizenID id.CitizenID) ([]*models.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Protocol
	for _, protocol := range s.protocols {
		if protocol.CitizenID == citizenID {
			out = append(out, cloneProtocol(protocol))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func cloneProtocol(protocol *models.Protocol) *models.Protocol {
	clone := *protocol
	clone.CustomData = maps.Clone(protocol.CustomData)
	if protocol.ConcludedAt != nil {
		t := *protocol.ConcludedAt
		clone.ConcludedAt = &t
	}
	return &clone
}
