// Package swap defines the venue capability the hub router uses to convert
// a source-chain asset representation into the destination one. Venue
// pricing is a black box behind the Executor interface; the only contract is
// the minimum-output bound.
package swap

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrSlippageExceeded is returned when a swap cannot meet minAmountOut
	ErrSlippageExceeded = errors.New("slippage exceeded")
	// ErrUnknownPair is returned when the venue has no route for the pair
	ErrUnknownPair = errors.New("unknown token pair")
)

// Executor converts an input asset amount into an output asset amount,
// enforcing a minimum-output bound
type Executor interface {
	Swap(ctx context.Context, tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int, recipient common.Address) (*big.Int, error)
}
