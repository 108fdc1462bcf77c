package node

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/speedrun-go/pkg/config"
	"github.com/speedrun-hq/speedrun-go/pkg/gateway"
	"github.com/speedrun-hq/speedrun-go/pkg/intent"
	"github.com/speedrun-hq/speedrun-go/pkg/ledger"
	"github.com/speedrun-hq/speedrun-go/pkg/logger"
	"github.com/speedrun-hq/speedrun-go/pkg/registry"
	"github.com/speedrun-hq/speedrun-go/pkg/roles"
	"github.com/speedrun-hq/speedrun-go/pkg/router"
	"github.com/speedrun-hq/speedrun-go/pkg/store"
	"github.com/speedrun-hq/speedrun-go/pkg/swap"
)

// SimulationParams configures a full deployment built from a topology
type SimulationParams struct {
	Topology    *config.Topology
	Mode        gateway.DeliveryMode
	MaxAttempts int
	Breaker     gateway.BreakerConfig
	SwapFeeBps  int64
	Logger      logger.Logger
	// StoreFactory builds the per-chain intent store; nil means in-memory
	StoreFactory func(chainID uint64) (store.Store, error)
	// Transport overrides the outbound transport, for broker-backed
	// deployments; nil sends through the local gateway. Inbound consumption
	// for an external transport is the caller's responsibility.
	Transport gateway.EndpointProvider
}

// Simulation is a complete deployment wired over an in-process gateway:
// one ChainNode per spoke chain, the router on the hub, a shared registry
// and role set. Tests and the demo command drive intents through it.
type Simulation struct {
	topo     *config.Topology
	gw       *gateway.LocalGateway
	roles    *roles.Set
	registry *registry.Registry
	router   *router.Router
	swapper  *swap.RateExecutor
	nodes    map[uint64]*ChainNode
	admin    common.Address
}

// NewSimulation builds and wires a deployment from the topology
func NewSimulation(p SimulationParams) (*Simulation, error) {
	if p.Topology == nil {
		return nil, fmt.Errorf("topology is required")
	}
	log := p.Logger
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	storeFactory := p.StoreFactory
	if storeFactory == nil {
		storeFactory = func(uint64) (store.Store, error) { return store.NewMemoryStore(), nil }
	}

	topo := p.Topology
	admin := topo.AdminAddress()
	roleSet := roles.NewSet(admin)
	for _, chain := range topo.Chains {
		logger.RegisterChain(chain.ID, chain.Name)
	}

	gw := gateway.NewLocalGateway(p.Mode, p.MaxAttempts, p.Breaker, log)
	var transport gateway.EndpointProvider = gw
	if p.Transport != nil {
		transport = p.Transport
	}
	reg := registry.New(roleSet, log, topo.ChainIDs())
	swapper := swap.NewRateExecutor(p.SwapFeeBps)
	routerAddr := topo.RouterAddress()

	hub, err := router.New(router.Params{
		ChainID:  topo.HubChain,
		Address:  routerAddr,
		Registry: reg,
		Roles:    roleSet,
		Gateway:  transport.Endpoint(topo.HubChain),
		Swapper:  swapper,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	gw.Register(topo.HubChain, hub)

	sim := &Simulation{
		topo:     topo,
		gw:       gw,
		roles:    roleSet,
		registry: reg,
		router:   hub,
		swapper:  swapper,
		nodes:    make(map[uint64]*ChainNode),
		admin:    admin,
	}

	for _, chain := range topo.Chains {
		if chain.ID == topo.HubChain {
			continue
		}
		chainStore, err := storeFactory(chain.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to build store for chain %d: %v", chain.ID, err)
		}
		contractAddr := common.HexToAddress(chain.IntentContract)
		contract, err := intent.New(intent.Params{
			ChainID:     chain.ID,
			HubChain:    topo.HubChain,
			Address:     contractAddr,
			Counterpart: routerAddr.Bytes(),
			Ledger:      ledger.New(chain.ID),
			Store:       chainStore,
			Roles:       roleSet,
			Gateway:     transport.Endpoint(chain.ID),
			Logger:      log,
		})
		if err != nil {
			return nil, err
		}
		n := NewChainNode(contract, roleSet, log)
		sim.nodes[chain.ID] = n
		gw.Register(chain.ID, n)

		if err := hub.SetIntentContract(admin, chain.ID, contractAddr.Bytes()); err != nil {
			return nil, err
		}
		if err := hub.SetTrustedCounterpart(admin, chain.ID, contractAddr.Bytes()); err != nil {
			return nil, err
		}
		if chain.WithdrawGasLimit > 0 {
			if err := hub.SetWithdrawGasLimit(admin, chain.ID, chain.WithdrawGasLimit); err != nil {
				return nil, err
			}
		}
	}

	for _, token := range topo.Tokens {
		if err := reg.AddToken(admin, token.ID); err != nil {
			return nil, err
		}
		for _, assoc := range token.Associations {
			asset := common.HexToAddress(assoc.Address)
			if err := reg.AddAssociation(admin, token.ID, assoc.Chain, asset); err != nil {
				return nil, err
			}
			if n, ok := sim.nodes[assoc.Chain]; ok {
				if err := n.Contract().AddAccepted(admin, asset); err != nil {
					return nil, err
				}
			}
		}
		// Representations of one logical token convert one-to-one; the
		// venue fee still applies on top
		for _, from := range token.Associations {
			for _, to := range token.Associations {
				if from.Chain == to.Chain {
					continue
				}
				swapper.SetRate(common.HexToAddress(from.Address), common.HexToAddress(to.Address), 1, 1)
			}
		}
	}

	return sim, nil
}

// Node returns the chain node for a spoke chain
func (s *Simulation) Node(chainID uint64) *ChainNode {
	return s.nodes[chainID]
}

// Nodes returns every hosted chain node
func (s *Simulation) Nodes() map[uint64]*ChainNode {
	return s.nodes
}

// Router returns the hub router
func (s *Simulation) Router() *router.Router {
	return s.router
}

// Registry returns the shared token registry
func (s *Simulation) Registry() *registry.Registry {
	return s.registry
}

// Gateway returns the in-process transport
func (s *Simulation) Gateway() *gateway.LocalGateway {
	return s.gw
}

// Roles returns the shared role set
func (s *Simulation) Roles() *roles.Set {
	return s.roles
}

// Swapper returns the built-in rate venue
func (s *Simulation) Swapper() *swap.RateExecutor {
	return s.swapper
}

// Admin returns the topology's admin principal
func (s *Simulation) Admin() common.Address {
	return s.admin
}
