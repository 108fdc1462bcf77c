// Package ledger models the per-chain token balances the on-chain contracts
// operate on. Custody pulls and payouts in the intent lifecycle are ledger
// transfers; a transfer either applies in full or not at all.
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientFunds is returned when a transfer exceeds the sender's balance
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount is returned for nil or negative amounts
	ErrInvalidAmount = errors.New("invalid amount")
)

// Ledger is a per-chain token balance book
type Ledger struct {
	chainID  uint64
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*big.Int // token -> account -> balance
}

// New creates an empty ledger for a chain
func New(chainID uint64) *Ledger {
	return &Ledger{
		chainID:  chainID,
		balances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// ChainID returns the chain this ledger belongs to
func (l *Ledger) ChainID() uint64 {
	return l.chainID
}

// Mint credits an account with new token supply. Used for test fixtures and
// to represent value delivered onto the chain by the cross-chain transport.
func (l *Ledger) Mint(token, account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(token, account, amount)
	return nil
}

// BalanceOf returns the account's balance for the token
func (l *Ledger) BalanceOf(token, account common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	accounts, ok := l.balances[token]
	if !ok {
		return new(big.Int)
	}
	balance, ok := accounts[account]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(balance)
}

// Transfer moves amount of token from one account to another. The debit and
// credit apply together or not at all.
func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balanceLocked(token, from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: account %s has %s of token %s, needs %s",
			ErrInsufficientFunds, from.Hex(), balance.String(), token.Hex(), amount.String())
	}

	l.balances[token][from] = new(big.Int).Sub(balance, amount)
	l.credit(token, to, amount)
	return nil
}

func (l *Ledger) balanceLocked(token, account common.Address) *big.Int {
	accounts, ok := l.balances[token]
	if !ok {
		return new(big.Int)
	}
	balance, ok := accounts[account]
	if !ok {
		return new(big.Int)
	}
	return balance
}

func (l *Ledger) credit(token, account common.Address, amount *big.Int) {
	accounts, ok := l.balances[token]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		l.balances[token] = accounts
	}
	current, ok := accounts[account]
	if !ok {
		current = new(big.Int)
	}
	accounts[account] = new(big.Int).Add(current, amount)
}
