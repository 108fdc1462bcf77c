package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/speedrun-go/pkg/models"
)

// MemoryStore keeps intent state in process memory. It backs simulations and
// tests; deployments wanting persistence use RedisStore.
type MemoryStore struct {
	mu           sync.RWMutex
	intents      map[common.Hash]*models.Intent
	fulfillments map[common.Hash]*models.Fulfillment
	settlements  map[common.Hash]*models.Settlement
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intents:      make(map[common.Hash]*models.Intent),
		fulfillments: make(map[common.Hash]*models.Fulfillment),
		settlements:  make(map[common.Hash]*models.Settlement),
	}
}

// CreateIntent implements Store
func (m *MemoryStore) CreateIntent(_ context.Context, intent *models.Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.intents[intent.ID]; ok {
		return fmt.Errorf("%w: %s", ErrIntentExists, intent.ID.Hex())
	}
	m.intents[intent.ID] = intent.Clone()
	return nil
}

// GetIntent implements Store
func (m *MemoryStore) GetIntent(_ context.Context, id common.Hash) (*models.Intent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	intent, ok := m.intents[id]
	if !ok {
		return nil, fmt.Errorf("%w: intent %s", ErrNotFound, id.Hex())
	}
	return intent.Clone(), nil
}

// DeleteIntent implements Store
func (m *MemoryStore) DeleteIntent(_ context.Context, id common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.intents[id]; !ok {
		return fmt.Errorf("%w: intent %s", ErrNotFound, id.Hex())
	}
	delete(m.intents, id)
	return nil
}

// SetStatus implements Store
func (m *MemoryStore) SetStatus(_ context.Context, id common.Hash, status models.IntentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[id]
	if !ok {
		return fmt.Errorf("%w: intent %s", ErrNotFound, id.Hex())
	}
	if !intent.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, intent.Status, status)
	}
	intent.Status = status
	return nil
}

// PutFulfillment implements Store
func (m *MemoryStore) PutFulfillment(_ context.Context, f *models.Fulfillment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.fulfillments[f.IntentID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyFulfilled, f.IntentID.Hex())
	}
	m.fulfillments[f.IntentID] = f.Clone()
	return nil
}

// GetFulfillment implements Store
func (m *MemoryStore) GetFulfillment(_ context.Context, id common.Hash) (*models.Fulfillment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fulfillments[id]
	if !ok {
		return nil, fmt.Errorf("%w: fulfillment for %s", ErrNotFound, id.Hex())
	}
	return f.Clone(), nil
}

// MarkSettled implements Store
func (m *MemoryStore) MarkSettled(_ context.Context, s *models.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.settlements[s.IntentID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadySettled, s.IntentID.Hex())
	}
	m.settlements[s.IntentID] = s.Clone()
	return nil
}

// GetSettlement implements Store
func (m *MemoryStore) GetSettlement(_ context.Context, id common.Hash) (*models.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settlements[id]
	if !ok {
		return nil, fmt.Errorf("%w: settlement for %s", ErrNotFound, id.Hex())
	}
	return s.Clone(), nil
}

// StatusOf implements Store
func (m *MemoryStore) StatusOf(_ context.Context, id common.Hash) (models.IntentStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.settlements[id]; ok {
		return models.StatusSettled, nil
	}
	if _, ok := m.fulfillments[id]; ok {
		return models.StatusFulfilled, nil
	}
	if intent, ok := m.intents[id]; ok {
		return intent.Status, nil
	}
	return models.StatusPending, nil
}

// Counts implements Store
func (m *MemoryStore) Counts(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{
		"intents":      len(m.intents),
		"fulfillments": len(m.fulfillments),
		"settlements":  len(m.settlements),
	}, nil
}
