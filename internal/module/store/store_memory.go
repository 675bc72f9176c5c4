package store

import (
	"context"
	"sync"

	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
)

type recordKey struct {
	module   models.ModuleType
	protocol id.ProtocolID
}

// InMemory is a map-backed entity store for tests and local development.
// Records must be seeded before they can be updated, mirroring the zero
// rows behavior of the SQL store.
type InMemory struct {
	mu      sync.RWMutex
	records map[recordKey]State
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[recordKey]State)}
}

// Seed materializes a side record, the way module routing does at
// protocol creation.
func (s *InMemory) Seed(module models.ModuleType, protocolID id.ProtocolID, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey{module: module, protocol: protocolID}] = state
}

// StateOf reports the current state of a seeded record.
func (s *InMemory) StateOf(module models.ModuleType, protocolID id.ProtocolID) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.records[recordKey{module: module, protocol: protocolID}]
	return state, ok
}

func (s *InMemory) UpdateState(ctx context.Context, module models.ModuleType, protocolID id.ProtocolID, state State) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{module: module, protocol: protocolID}
	if _, ok := s.records[key]; !ok {
		return 0, nil
	}
	s.records[key] = state
	return 1, nil
}
