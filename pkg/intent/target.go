package intent

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Target is implemented by receiver contracts that want custom execution at
// delivery time, for example an auto-swap on receipt. The contract
// guarantees that OnFulfill strictly precedes any OnSettle for the same id
// and that each is invoked at most once; a callback error never rolls back
// the core bookkeeping.
type Target interface {
	// OnFulfill runs at fast-path delivery, whether from a fulfiller or from
	// a settlement that found no fulfiller
	OnFulfill(ctx context.Context, id common.Hash, asset common.Address, amount *big.Int, data []byte) error
	// OnSettle runs at settlement reconciliation when a fulfillment was
	// reimbursed; fulfillmentIndex identifies the reimbursed fulfillment
	OnSettle(ctx context.Context, id common.Hash, asset common.Address, amount *big.Int, data []byte, fulfillmentIndex common.Hash) error
}
