package swap

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

const bpsDenominator = 10000

type pair struct {
	in  common.Address
	out common.Address
}

type rate struct {
	numerator   *big.Int
	denominator *big.Int
}

// RateExecutor is a swap venue with a fixed rate table and a basis-point
// fee. Identity swaps (tokenIn == tokenOut) always pass through unchanged.
type RateExecutor struct {
	mu     sync.RWMutex
	rates  map[pair]rate
	feeBps int64
}

var _ Executor = (*RateExecutor)(nil)

// NewRateExecutor creates a venue charging feeBps on every non-identity swap
func NewRateExecutor(feeBps int64) *RateExecutor {
	return &RateExecutor{
		rates:  make(map[pair]rate),
		feeBps: feeBps,
	}
}

// SetRate configures the tokenIn -> tokenOut conversion as a fraction.
// A rate of (1, 1) models same-value representations on different chains.
func (e *RateExecutor) SetRate(tokenIn, tokenOut common.Address, numerator, denominator int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rates[pair{tokenIn, tokenOut}] = rate{
		numerator:   big.NewInt(numerator),
		denominator: big.NewInt(denominator),
	}
}

// Swap implements Executor
func (e *RateExecutor) Swap(_ context.Context, tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int, _ common.Address) (*big.Int, error) {
	if tokenIn == tokenOut {
		return new(big.Int).Set(amountIn), nil
	}

	e.mu.RLock()
	r, ok := e.rates[pair{tokenIn, tokenOut}]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrUnknownPair, tokenIn.Hex(), tokenOut.Hex())
	}

	amountOut := new(big.Int).Mul(amountIn, r.numerator)
	amountOut.Div(amountOut, r.denominator)
	amountOut.Mul(amountOut, big.NewInt(bpsDenominator-e.feeBps))
	amountOut.Div(amountOut, big.NewInt(bpsDenominator))

	if minAmountOut != nil && amountOut.Cmp(minAmountOut) < 0 {
		return nil, fmt.Errorf("%w: got %s, need at least %s",
			ErrSlippageExceeded, amountOut.String(), minAmountOut.String())
	}
	return amountOut, nil
}
