// Package registry maintains the token association table: a logical token
// identity mapped to its concrete asset address on each chain. The hub
// router resolves destination assets through it.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/speedrun-go/pkg/logger"
	"github.com/speedrun-hq/speedrun-go/pkg/metrics"
	"github.com/speedrun-hq/speedrun-go/pkg/roles"
)

var (
	// ErrNotFound is returned when a token or association does not exist
	ErrNotFound = errors.New("association not found")
	// ErrExists is returned when adding a token or association that already exists
	ErrExists = errors.New("association already exists")
	// ErrUnknownChain is returned for chain ids outside the configured topology
	ErrUnknownChain = errors.New("unknown chain")
	// ErrZeroAddress is returned when an association points at the zero address
	ErrZeroAddress = errors.New("zero asset address")
)

// Registry maps (logical token, chain) to a concrete asset address and keeps
// the reverse index used to recognize inbound assets. Mutations are gated by
// the registrar role; records already created from an association are not
// touched by later updates or removals, intents store concrete addresses.
type Registry struct {
	mu      sync.RWMutex
	chains  map[uint64]bool
	tokens  map[string]map[uint64]common.Address
	reverse map[uint64]map[common.Address]string
	roles   *roles.Set
	logger  logger.Logger
}

// New creates a registry over the known chain set
func New(roleSet *roles.Set, log logger.Logger, knownChains []uint64) *Registry {
	chains := make(map[uint64]bool, len(knownChains))
	for _, id := range knownChains {
		chains[id] = true
	}
	return &Registry{
		chains:  chains,
		tokens:  make(map[string]map[uint64]common.Address),
		reverse: make(map[uint64]map[common.Address]string),
		roles:   roleSet,
		logger:  log,
	}
}

// AddToken registers a logical token identity with no associations yet
func (r *Registry) AddToken(caller common.Address, token string) error {
	if err := r.roles.Require(caller, roles.RoleRegistrar); err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("empty token identifier")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[token]; ok {
		return fmt.Errorf("%w: token %s", ErrExists, token)
	}
	r.tokens[token] = make(map[uint64]common.Address)
	r.logger.Info("Registered logical token %s", token)
	return nil
}

// AddAssociation binds the logical token to a concrete asset on a chain.
// A logical token holds at most one address per chain.
func (r *Registry) AddAssociation(caller common.Address, token string, chainID uint64, asset common.Address) error {
	if err := r.roles.Require(caller, roles.RoleRegistrar); err != nil {
		return err
	}
	if err := r.validate(chainID, asset); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	assocs, ok := r.tokens[token]
	if !ok {
		return fmt.Errorf("%w: token %s", ErrNotFound, token)
	}
	if _, ok := assocs[chainID]; ok {
		return fmt.Errorf("%w: token %s on chain %d", ErrExists, token, chainID)
	}
	assocs[chainID] = asset
	r.index(token, chainID, asset)
	metrics.TokenAssociations.Inc()
	r.logger.InfoWithChain(chainID, "Associated token %s with asset %s", token, asset.Hex())
	return nil
}

// UpdateAssociation replaces the asset address for an existing association
func (r *Registry) UpdateAssociation(caller common.Address, token string, chainID uint64, asset common.Address) error {
	if err := r.roles.Require(caller, roles.RoleRegistrar); err != nil {
		return err
	}
	if err := r.validate(chainID, asset); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	assocs, ok := r.tokens[token]
	if !ok {
		return fmt.Errorf("%w: token %s", ErrNotFound, token)
	}
	previous, ok := assocs[chainID]
	if !ok {
		return fmt.Errorf("%w: token %s on chain %d", ErrNotFound, token, chainID)
	}
	assocs[chainID] = asset
	delete(r.reverse[chainID], previous)
	r.index(token, chainID, asset)
	r.logger.InfoWithChain(chainID, "Updated association for token %s: %s -> %s", token, previous.Hex(), asset.Hex())
	return nil
}

// RemoveAssociation drops the association for a chain. In-flight intents are
// unaffected, they carry concrete addresses; only future routing changes.
func (r *Registry) RemoveAssociation(caller common.Address, token string, chainID uint64) error {
	if err := r.roles.Require(caller, roles.RoleRegistrar); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	assocs, ok := r.tokens[token]
	if !ok {
		return fmt.Errorf("%w: token %s", ErrNotFound, token)
	}
	asset, ok := assocs[chainID]
	if !ok {
		return fmt.Errorf("%w: token %s on chain %d", ErrNotFound, token, chainID)
	}
	delete(assocs, chainID)
	delete(r.reverse[chainID], asset)
	metrics.TokenAssociations.Dec()
	r.logger.InfoWithChain(chainID, "Removed association for token %s", token)
	return nil
}

// Resolve returns the concrete asset address for the logical token on a chain
func (r *Registry) Resolve(token string, chainID uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	assocs, ok := r.tokens[token]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: token %s", ErrNotFound, token)
	}
	asset, ok := assocs[chainID]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: token %s on chain %d", ErrNotFound, token, chainID)
	}
	return asset, nil
}

// LogicalOf returns the logical token a concrete asset on a chain belongs to
func (r *Registry) LogicalOf(asset common.Address, chainID uint64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.reverse[chainID][asset]
	if !ok {
		return "", fmt.Errorf("%w: asset %s on chain %d", ErrNotFound, asset.Hex(), chainID)
	}
	return token, nil
}

// Tokens returns the registered logical token identifiers
func (r *Registry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tokens))
	for token := range r.tokens {
		out = append(out, token)
	}
	return out
}

func (r *Registry) validate(chainID uint64, asset common.Address) error {
	if asset == (common.Address{}) {
		return ErrZeroAddress
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.chains[chainID] {
		return fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	return nil
}

func (r *Registry) index(token string, chainID uint64, asset common.Address) {
	if r.reverse[chainID] == nil {
		r.reverse[chainID] = make(map[common.Address]string)
	}
	r.reverse[chainID][asset] = token
}
