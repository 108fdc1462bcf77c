package chains

// ChainList contains the list of supported chain IDs
var ChainList = []uint64{
	1,     // Ethereum
	137,   // Polygon
	42161, // Arbitrum
	43114, // Avalanche
	56,    // Binance Smart Chain
	7000,  // ZetaChain
	8453,  // Base
}

// chainNames maps chain IDs to their names
var chainNames = map[uint64]string{
	1:     "ETHEREUM",
	137:   "POLYGON",
	42161: "ARBITRUM",
	43114: "AVALANCHE",
	56:    "BSC",
	7000:  "ZETACHAIN",
	8453:  "BASE",
}

// DefaultWithdrawGasLimit is the gas allowance attached to forwarded
// settlements when a chain has no specific entry
const DefaultWithdrawGasLimit = uint64(400000)

// withdrawGasLimits holds per-chain gas allowances for forwarded settlements
var withdrawGasLimits = map[uint64]uint64{
	1:     400000,  // Ethereum
	137:   400000,  // Polygon
	42161: 1000000, // Arbitrum
	43114: 400000,  // Avalanche
	56:    400000,  // Binance Smart Chain
	7000:  400000,  // ZetaChain
	8453:  400000,  // Base
}

// GetChainName returns the name of the chain for a given chain ID
func GetChainName(chainID uint64) string {
	name, exists := chainNames[chainID]
	if !exists {
		return ""
	}
	return name
}

// WithdrawGasLimit returns the default gas allowance for a chain
func WithdrawGasLimit(chainID uint64) uint64 {
	if limit, ok := withdrawGasLimits[chainID]; ok {
		return limit
	}
	return DefaultWithdrawGasLimit
}
