package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Fulfillment records a fulfiller's advance delivery of an intent's value
// on the destination chain, ahead of settlement
type Fulfillment struct {
	Index     common.Hash    `json:"index"`
	IntentID  common.Hash    `json:"intent_id"`
	Fulfiller common.Address `json:"fulfiller"`
	Asset     common.Address `json:"asset"`
	Amount    *big.Int       `json:"amount"`
	Receiver  common.Address `json:"receiver"`
}

// Clone returns a deep copy of the fulfillment
func (f *Fulfillment) Clone() *Fulfillment {
	clone := *f
	clone.Amount = new(big.Int).Set(f.Amount)
	return &clone
}

// Settlement records the authoritative outcome of an intent on the
// destination chain. Fulfilled reports whether a matching fulfillment was
// reimbursed; Paid is the total delivered, principal plus tip.
type Settlement struct {
	IntentID  common.Hash    `json:"intent_id"`
	Asset     common.Address `json:"asset"`
	Amount    *big.Int       `json:"amount"`
	Fulfilled bool           `json:"fulfilled"`
	Fulfiller common.Address `json:"fulfiller,omitempty"`
	Paid      *big.Int       `json:"paid"`
}

// Clone returns a deep copy of the settlement
func (s *Settlement) Clone() *Settlement {
	clone := *s
	clone.Amount = new(big.Int).Set(s.Amount)
	clone.Paid = new(big.Int).Set(s.Paid)
	return &clone
}

// FulfillmentIndex derives the identifier of a single fulfillment call.
// Settlement recomputes the index from the message's own asset, amount and
// receiver, so only a fulfillment that delivered exactly those values can be
// located for reimbursement.
func FulfillmentIndex(id common.Hash, asset common.Address, amount *big.Int, receiver common.Address) common.Hash {
	hash := crypto.Keccak256(
		id.Bytes(),
		asset.Bytes(),
		common.LeftPadBytes(amount.Bytes(), 32),
		receiver.Bytes(),
	)
	return common.BytesToHash(hash)
}
