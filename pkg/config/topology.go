package config

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Topology declares the chain and token layout a deployment operates over:
// which chains exist, which one is the hub, where the intent contracts live,
// and how logical tokens map to per-chain asset addresses.
type Topology struct {
	HubChain uint64          `yaml:"hub_chain"`
	Router   string          `yaml:"router"`
	Admin    string          `yaml:"admin"`
	Chains   []ChainTopology `yaml:"chains"`
	Tokens   []TokenTopology `yaml:"tokens"`
}

// ChainTopology declares one chain
type ChainTopology struct {
	ID               uint64 `yaml:"id"`
	Name             string `yaml:"name"`
	IntentContract   string `yaml:"intent_contract"`
	WithdrawGasLimit uint64 `yaml:"withdraw_gas_limit,omitempty"`
}

// TokenTopology declares a logical token and its per-chain associations
type TokenTopology struct {
	ID           string             `yaml:"id"`
	Associations []AssociationEntry `yaml:"associations"`
}

// AssociationEntry binds a logical token to a concrete asset on one chain
type AssociationEntry struct {
	Chain   uint64 `yaml:"chain"`
	Address string `yaml:"address"`
}

// LoadTopology reads and validates a topology file
func LoadTopology(path string) (*Topology, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %v", err)
	}
	var topo Topology
	if err := yaml.Unmarshal(raw, &topo); err != nil {
		return nil, fmt.Errorf("failed to parse topology file: %v", err)
	}
	if err := topo.Validate(); err != nil {
		return nil, err
	}
	return &topo, nil
}

// Validate checks the topology for internal consistency
func (t *Topology) Validate() error {
	if len(t.Chains) == 0 {
		return fmt.Errorf("topology declares no chains")
	}
	if !common.IsHexAddress(t.Admin) {
		return fmt.Errorf("invalid admin address: %q", t.Admin)
	}
	if !common.IsHexAddress(t.Router) {
		return fmt.Errorf("invalid router address: %q", t.Router)
	}
	known := make(map[uint64]bool, len(t.Chains))
	for _, chain := range t.Chains {
		if chain.ID == 0 {
			return fmt.Errorf("chain id must be positive")
		}
		if known[chain.ID] {
			return fmt.Errorf("duplicate chain id %d", chain.ID)
		}
		if chain.Name == "" {
			return fmt.Errorf("chain %d has no name", chain.ID)
		}
		if !common.IsHexAddress(chain.IntentContract) {
			return fmt.Errorf("chain %d has invalid intent contract address %q", chain.ID, chain.IntentContract)
		}
		known[chain.ID] = true
	}
	if !known[t.HubChain] {
		return fmt.Errorf("hub chain %d is not declared", t.HubChain)
	}
	for _, token := range t.Tokens {
		if token.ID == "" {
			return fmt.Errorf("token with empty identifier")
		}
		for _, assoc := range token.Associations {
			if !known[assoc.Chain] {
				return fmt.Errorf("token %s references unknown chain %d", token.ID, assoc.Chain)
			}
			if !common.IsHexAddress(assoc.Address) {
				return fmt.Errorf("token %s has invalid address %q on chain %d", token.ID, assoc.Address, assoc.Chain)
			}
		}
	}
	return nil
}

// ChainIDs returns the declared chain ids
func (t *Topology) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(t.Chains))
	for _, chain := range t.Chains {
		ids = append(ids, chain.ID)
	}
	return ids
}

// AdminAddress returns the parsed admin address
func (t *Topology) AdminAddress() common.Address {
	return common.HexToAddress(t.Admin)
}

// RouterAddress returns the parsed hub router address
func (t *Topology) RouterAddress() common.Address {
	return common.HexToAddress(t.Router)
}
