// Package node hosts the protocol components of one deployment: a ChainNode
// per chain holding that chain's ledger, store and intent contract, and the
// wiring that connects them to the hub router through a gateway.
package node

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/speedrun-go/pkg/intent"
	"github.com/speedrun-hq/speedrun-go/pkg/ledger"
	"github.com/speedrun-hq/speedrun-go/pkg/logger"
	"github.com/speedrun-hq/speedrun-go/pkg/roles"
	"github.com/speedrun-hq/speedrun-go/pkg/store"
)

// ChainNode hosts one chain's state and intent contract behind a stable
// handle. The durable state (ledger, store) is separate from the contract
// behavior, so the behavior can be upgraded while state persists.
type ChainNode struct {
	mu       sync.RWMutex
	chainID  uint64
	ledger   *ledger.Ledger
	store    store.Store
	contract *intent.Contract
	roles    *roles.Set
	logger   logger.Logger
}

// NewChainNode creates a node around an existing contract
func NewChainNode(contract *intent.Contract, roleSet *roles.Set, log logger.Logger) *ChainNode {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &ChainNode{
		chainID:  contract.ChainID(),
		ledger:   contract.Ledger(),
		store:    contract.Store(),
		contract: contract,
		roles:    roleSet,
		logger:   log,
	}
}

// ChainID returns the hosted chain's id
func (n *ChainNode) ChainID() uint64 { return n.chainID }

// Ledger returns the chain's balance book
func (n *ChainNode) Ledger() *ledger.Ledger { return n.ledger }

// Store returns the chain's intent store
func (n *ChainNode) Store() store.Store { return n.store }

// Contract returns the current intent contract behind the stable handle
func (n *ChainNode) Contract() *intent.Contract {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.contract
}

// OnInboundCall forwards transport deliveries to the current contract, so
// the node stays the registered gateway handler across upgrades
func (n *ChainNode) OnInboundCall(ctx context.Context, sourceChain uint64, sender []byte, payload []byte) error {
	return n.Contract().OnInboundCall(ctx, sourceChain, sender, payload)
}

// UpgradeContract swaps the contract behavior while state persists. The
// factory receives the previous contract and builds the replacement over
// the same store and ledger; callers need the upgrader role.
func (n *ChainNode) UpgradeContract(caller common.Address, factory func(previous *intent.Contract) (*intent.Contract, error)) error {
	if err := n.roles.Require(caller, roles.RoleUpgrader); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	replacement, err := factory(n.contract)
	if err != nil {
		return fmt.Errorf("failed to build replacement contract: %w", err)
	}
	if replacement.ChainID() != n.chainID {
		return fmt.Errorf("replacement contract targets chain %d, node hosts %d", replacement.ChainID(), n.chainID)
	}
	n.logger.NoticeWithChain(n.chainID, "Upgrading intent contract v%d -> v%d", n.contract.Version(), replacement.Version())
	n.contract = replacement
	return nil
}

// Paused reports the contract's pause flags
func (n *ChainNode) Paused() (initiation, fulfillment bool) {
	return n.Contract().Paused()
}

// RecordCounts returns the store's record counts for the health surface
func (n *ChainNode) RecordCounts() (map[string]int, error) {
	return n.store.Counts(context.Background())
}
