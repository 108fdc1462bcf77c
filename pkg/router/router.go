// Package router implements the hub-chain component that receives initiated
// intents, resolves the destination asset and contract, optionally swaps
// through the configured venue, and forwards settlement with a bounded gas
// allowance.
package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/speedrun-go/pkg/chains"
	"github.com/speedrun-hq/speedrun-go/pkg/gateway"
	"github.com/speedrun-hq/speedrun-go/pkg/logger"
	"github.com/speedrun-hq/speedrun-go/pkg/metrics"
	"github.com/speedrun-hq/speedrun-go/pkg/models"
	"github.com/speedrun-hq/speedrun-go/pkg/registry"
	"github.com/speedrun-hq/speedrun-go/pkg/roles"
	"github.com/speedrun-hq/speedrun-go/pkg/swap"
)

var (
	// ErrUntrustedSender is returned when the inbound call's authenticated
	// sender is not the registered counterpart for its chain
	ErrUntrustedSender = errors.New("untrusted inbound sender")
	// ErrNoIntentContract is returned when no intent contract is registered
	// for the destination chain
	ErrNoIntentContract = errors.New("no intent contract registered for chain")
	// ErrZeroAddress is returned for empty contract or counterpart addresses
	ErrZeroAddress = errors.New("zero address")
)

// Params configures a Router
type Params struct {
	ChainID  uint64 // the hub chain
	Address  common.Address
	Registry *registry.Registry
	Roles    *roles.Set
	Gateway  gateway.Sender
	Swapper  swap.Executor // optional; nil forwards amounts unswapped
	Logger   logger.Logger
}

// Router is the hub-chain forwarding component
type Router struct {
	mu       sync.Mutex
	chainID  uint64
	addr     common.Address
	registry *registry.Registry
	roles    *roles.Set
	gw       gateway.Sender
	swapper  swap.Executor
	logger   logger.Logger

	intentContracts map[uint64][]byte
	trusted         map[uint64][]byte
	gasLimits       map[uint64]uint64
}

var _ gateway.Handler = (*Router)(nil)

// New creates a router
func New(p Params) (*Router, error) {
	if p.Registry == nil || p.Roles == nil || p.Gateway == nil {
		return nil, fmt.Errorf("registry, roles and gateway are required")
	}
	if p.Logger == nil {
		p.Logger = &logger.EmptyLogger{}
	}
	return &Router{
		chainID:         p.ChainID,
		addr:            p.Address,
		registry:        p.Registry,
		roles:           p.Roles,
		gw:              p.Gateway,
		swapper:         p.Swapper,
		logger:          p.Logger,
		intentContracts: make(map[uint64][]byte),
		trusted:         make(map[uint64][]byte),
		gasLimits:       make(map[uint64]uint64),
	}, nil
}

// ChainID returns the hub chain id
func (r *Router) ChainID() uint64 { return r.chainID }

// Address returns the router's identity on the hub chain
func (r *Router) Address() common.Address { return r.addr }

// OnInboundCall handles an initiated intent arriving from a source chain.
// Any error fails the whole handling with no outbound message; the
// transport retries or parks the delivery. In particular the router never
// forwards a worse amount after a failed swap.
func (r *Router) OnInboundCall(ctx context.Context, sourceChain uint64, sender []byte, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	trusted, ok := r.trusted[sourceChain]
	if !ok || !bytes.Equal(sender, trusted) {
		return fmt.Errorf("%w: %x from chain %d", ErrUntrustedSender, sender, sourceChain)
	}

	p, err := models.DecodeIntentPayload(payload)
	if err != nil {
		return err
	}
	targetLabel := strconv.FormatUint(p.TargetChain, 10)

	token, err := r.registry.LogicalOf(p.Asset, sourceChain)
	if err != nil {
		return fmt.Errorf("cannot route asset: %w", err)
	}
	destAsset, err := r.registry.Resolve(token, p.TargetChain)
	if err != nil {
		return fmt.Errorf("cannot route token %s: %w", token, err)
	}
	_, ok = r.intentContracts[p.TargetChain]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoIntentContract, p.TargetChain)
	}

	// The whole locked value converts through the venue. The minimum-output
	// bound is the principal: slippage and venue fees only ever eat the tip.
	amount := new(big.Int).Set(p.Amount)
	tip := new(big.Int).Set(p.Tip)
	if r.swapper != nil {
		total := new(big.Int).Add(amount, tip)
		out, err := r.swapper.Swap(ctx, p.Asset, destAsset, total, amount, r.addr)
		if err != nil {
			metrics.RouterSwapFailures.WithLabelValues(targetLabel).Inc()
			return fmt.Errorf("swap failed: %w", err)
		}
		tip = new(big.Int).Sub(out, amount)
	}

	settlement := &models.SettlementPayload{
		ID:       p.ID,
		Asset:    destAsset,
		Amount:   amount,
		Receiver: p.Receiver,
		Tip:      tip,
		Data:     p.Data,
	}
	encoded, err := settlement.Encode()
	if err != nil {
		return err
	}

	gasLimit, ok := r.gasLimits[p.TargetChain]
	if !ok {
		gasLimit = chains.WithdrawGasLimit(p.TargetChain)
	}
	if err := r.gw.SendOutbound(ctx, p.TargetChain, r.addr.Bytes(), encoded, gasLimit); err != nil {
		return fmt.Errorf("failed to forward settlement: %w", err)
	}

	metrics.RouterForwards.WithLabelValues(targetLabel).Inc()
	r.logger.InfoWithChain(r.chainID, "Forwarded intent %s: %s %s from chain %d to chain %d (tip %s, gas %d)",
		p.ID.Hex(), amount.String(), token, sourceChain, p.TargetChain, tip.String(), gasLimit)
	return nil
}

// SetIntentContract registers the destination intent contract for a chain.
// Required before any intent can be routed there.
func (r *Router) SetIntentContract(caller common.Address, chainID uint64, contract []byte) error {
	if err := r.roles.Require(caller, roles.RoleAdmin); err != nil {
		return err
	}
	if len(contract) == 0 || bytes.Equal(contract, make([]byte, len(contract))) {
		return ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intentContracts[chainID] = contract
	r.logger.InfoWithChain(chainID, "Registered intent contract %x", contract)
	return nil
}

// SetTrustedCounterpart registers the source-chain identity whose inbound
// calls are accepted
func (r *Router) SetTrustedCounterpart(caller common.Address, chainID uint64, counterpart []byte) error {
	if err := r.roles.Require(caller, roles.RoleAdmin); err != nil {
		return err
	}
	if len(counterpart) == 0 {
		return ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trusted[chainID] = counterpart
	return nil
}

// SetWithdrawGasLimit overrides the gas allowance attached to settlements
// forwarded to a chain
func (r *Router) SetWithdrawGasLimit(caller common.Address, chainID uint64, gasLimit uint64) error {
	if err := r.roles.Require(caller, roles.RoleAdmin); err != nil {
		return err
	}
	if gasLimit == 0 {
		return fmt.Errorf("gas limit must be positive")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gasLimits[chainID] = gasLimit
	return nil
}

// SetSwapModule swaps the venue behind the router's swap pointer
func (r *Router) SetSwapModule(caller common.Address, swapper swap.Executor) error {
	if err := r.roles.Require(caller, roles.RoleUpgrader); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swapper = swapper
	r.logger.Notice("Swap module replaced")
	return nil
}

// Registry returns the token registry the router resolves through. Token
// association administration goes through it directly.
func (r *Router) Registry() *registry.Registry {
	return r.registry
}
