package models

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// IntentStatus represents the lifecycle position of an intent
type IntentStatus uint8

const (
	// StatusPending means the intent is initiated but not yet fulfilled or settled
	StatusPending IntentStatus = iota
	// StatusFulfilled means a fulfiller advanced the funds ahead of settlement
	StatusFulfilled
	// StatusSettled means the cross-chain settlement reconciled the intent
	StatusSettled
)

// String returns the human readable name of the status
func (s IntentStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFulfilled:
		return "fulfilled"
	case StatusSettled:
		return "settled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// CanTransition reports whether the status machine allows moving to next.
// Allowed paths are Pending -> Fulfilled -> Settled and Pending -> Settled;
// nothing leaves Settled.
func (s IntentStatus) CanTransition(next IntentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusFulfilled || next == StatusSettled
	case StatusFulfilled:
		return next == StatusSettled
	default:
		return false
	}
}

// Intent represents a user's declared transfer of value to a receiver on
// another chain, recorded on the source chain at initiation
type Intent struct {
	ID          common.Hash    `json:"id"`
	Sender      common.Address `json:"sender"`
	Asset       common.Address `json:"asset"`
	Amount      *big.Int       `json:"amount"`
	TargetChain uint64         `json:"target_chain"`
	Receiver    []byte         `json:"receiver"`
	Tip         *big.Int       `json:"tip"`
	Salt        *big.Int       `json:"salt"`
	SourceChain uint64         `json:"source_chain"`
	Status      IntentStatus   `json:"status"`
	Data        []byte         `json:"data,omitempty"`
}

// Clone returns a deep copy of the intent so stored records cannot be
// mutated through a returned pointer
func (i *Intent) Clone() *Intent {
	clone := *i
	clone.Amount = new(big.Int).Set(i.Amount)
	clone.Tip = new(big.Int).Set(i.Tip)
	clone.Salt = new(big.Int).Set(i.Salt)
	clone.Receiver = append([]byte(nil), i.Receiver...)
	clone.Data = append([]byte(nil), i.Data...)
	return &clone
}

// IntentID derives the content-addressed identifier of an intent. The hash
// covers every field a caller controls plus the source chain id, so two
// intents collide only when all inputs, including the salt, are identical.
func IntentID(
	sender common.Address,
	asset common.Address,
	amount *big.Int,
	targetChain uint64,
	receiver []byte,
	tip *big.Int,
	salt *big.Int,
	sourceChain uint64,
) common.Hash {
	hash := crypto.Keccak256(
		sender.Bytes(),
		asset.Bytes(),
		common.LeftPadBytes(amount.Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(targetChain).Bytes(), 32),
		receiver,
		common.LeftPadBytes(tip.Bytes(), 32),
		common.LeftPadBytes(salt.Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(sourceChain).Bytes(), 32),
	)
	return common.BytesToHash(hash)
}
