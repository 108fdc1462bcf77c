package models

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Payload kind markers, first byte of every cross-chain message
const (
	// PayloadKindIntent is an intent contract -> hub router message
	PayloadKindIntent byte = 0x01
	// PayloadKindSettlement is a hub router -> intent contract message
	PayloadKindSettlement byte = 0x02
)

// ErrMalformedPayload is returned when a cross-chain payload cannot be decoded
var ErrMalformedPayload = errors.New("malformed payload")

// IntentPayload carries an initiated intent from the source chain's intent
// contract to the hub router
type IntentPayload struct {
	ID          common.Hash
	Asset       common.Address
	Amount      *big.Int
	TargetChain uint64
	Receiver    []byte
	Tip         *big.Int
	Data        []byte
}

// SettlementPayload carries the authoritative settlement from the hub router
// to the destination chain's intent contract
type SettlementPayload struct {
	ID       common.Hash
	Asset    common.Address
	Amount   *big.Int
	Receiver []byte
	Tip      *big.Int
	Data     []byte
}

var (
	bytes32Type = mustNewType("bytes32")
	addressType = mustNewType("address")
	uint256Type = mustNewType("uint256")
	bytesType   = mustNewType("bytes")

	intentArgs = abi.Arguments{
		{Name: "intentId", Type: bytes32Type},
		{Name: "asset", Type: addressType},
		{Name: "amount", Type: uint256Type},
		{Name: "targetChain", Type: uint256Type},
		{Name: "receiver", Type: bytesType},
		{Name: "tip", Type: uint256Type},
		{Name: "data", Type: bytesType},
	}

	settlementArgs = abi.Arguments{
		{Name: "intentId", Type: bytes32Type},
		{Name: "asset", Type: addressType},
		{Name: "amount", Type: uint256Type},
		{Name: "receiver", Type: bytesType},
		{Name: "tip", Type: uint256Type},
		{Name: "data", Type: bytesType},
	}
)

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("invalid abi type %q: %v", t, err))
	}
	return typ
}

// Encode packs the intent payload into its wire representation
func (p *IntentPayload) Encode() ([]byte, error) {
	packed, err := intentArgs.Pack(
		[32]byte(p.ID),
		p.Asset,
		p.Amount,
		new(big.Int).SetUint64(p.TargetChain),
		p.Receiver,
		p.Tip,
		p.Data,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack intent payload: %v", err)
	}
	return append([]byte{PayloadKindIntent}, packed...), nil
}

// DecodeIntentPayload unpacks an intent payload from its wire representation
func DecodeIntentPayload(raw []byte) (*IntentPayload, error) {
	if len(raw) < 1 || raw[0] != PayloadKindIntent {
		return nil, ErrMalformedPayload
	}
	values, err := intentArgs.Unpack(raw[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(values) != len(intentArgs) {
		return nil, ErrMalformedPayload
	}
	targetChain := values[3].(*big.Int)
	if !targetChain.IsUint64() {
		return nil, fmt.Errorf("%w: target chain out of range", ErrMalformedPayload)
	}
	return &IntentPayload{
		ID:          common.Hash(values[0].([32]byte)),
		Asset:       values[1].(common.Address),
		Amount:      values[2].(*big.Int),
		TargetChain: targetChain.Uint64(),
		Receiver:    values[4].([]byte),
		Tip:         values[5].(*big.Int),
		Data:        values[6].([]byte),
	}, nil
}

// Encode packs the settlement payload into its wire representation
func (p *SettlementPayload) Encode() ([]byte, error) {
	packed, err := settlementArgs.Pack(
		[32]byte(p.ID),
		p.Asset,
		p.Amount,
		p.Receiver,
		p.Tip,
		p.Data,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack settlement payload: %v", err)
	}
	return append([]byte{PayloadKindSettlement}, packed...), nil
}

// DecodeSettlementPayload unpacks a settlement payload from its wire representation
func DecodeSettlementPayload(raw []byte) (*SettlementPayload, error) {
	if len(raw) < 1 || raw[0] != PayloadKindSettlement {
		return nil, ErrMalformedPayload
	}
	values, err := settlementArgs.Unpack(raw[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(values) != len(settlementArgs) {
		return nil, ErrMalformedPayload
	}
	return &SettlementPayload{
		ID:       common.Hash(values[0].([32]byte)),
		Asset:    values[1].(common.Address),
		Amount:   values[2].(*big.Int),
		Receiver: values[3].([]byte),
		Tip:      values[4].(*big.Int),
		Data:     values[5].([]byte),
	}, nil
}
