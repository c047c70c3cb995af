// Copyright 2025 Zenith Chromion Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package token provides the per-domain asset balance book used by the
// treasury and relay. Mint/burn/transfer bookkeeping is simple glue around
// the governance and treasury state machines, not part of the settlement
// protocol itself.
package token

import (
	"errors"
	"fmt"
	"sync"
)

// Address identifies an account within a domain
type Address string

// Asset identifies a fungible asset tracked by a ledger
type Asset string

var (
	ErrZeroAmount          = errors.New("amount must be greater than zero")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// InsufficientBalanceError wraps ErrInsufficientBalance with the accounting
// details of the failed movement
type InsufficientBalanceError struct {
	Asset   Asset
	Account Address
	Have    uint64
	Want    uint64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf(
		"insufficient balance: asset=%s account=%s have=%d want=%d",
		e.Asset,
		e.Account,
		e.Have,
		e.Want,
	)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// Ledger is a domain-local balance book. All mutations are atomic: a
// transfer either moves the full amount or leaves both accounts untouched.
type Ledger struct {
	balances map[Asset]map[Address]uint64
	supply   map[Asset]uint64
	mu       sync.RWMutex
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[Asset]map[Address]uint64),
		supply:   make(map[Asset]uint64),
	}
}

// Balance returns the current balance for the given asset and account
func (l *Ledger) Balance(asset Asset, account Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[asset][account]
}

// TotalSupply returns the outstanding supply for the given asset
func (l *Ledger) TotalSupply(asset Asset) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply[asset]
}

// Mint creates new units of an asset and credits them to an account
func (l *Ledger) Mint(asset Asset, account Address, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(asset, account, amount)
	l.supply[asset] += amount
	return nil
}

// Burn destroys units of an asset held by an account
func (l *Ledger) Burn(asset Asset, account Address, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(asset, account, amount); err != nil {
		return err
	}
	l.supply[asset] -= amount
	return nil
}

// Transfer moves an amount of an asset between two accounts
func (l *Ledger) Transfer(
	asset Asset,
	from Address,
	to Address,
	amount uint64,
) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(asset, from, amount); err != nil {
		return err
	}
	l.credit(asset, to, amount)
	return nil
}

func (l *Ledger) credit(asset Asset, account Address, amount uint64) {
	accts, ok := l.balances[asset]
	if !ok {
		accts = make(map[Address]uint64)
		l.balances[asset] = accts
	}
	accts[account] += amount
}

func (l *Ledger) debit(asset Asset, account Address, amount uint64) error {
	have := l.balances[asset][account]
	if have < amount {
		return &InsufficientBalanceError{
			Asset:   asset,
			Account: account,
			Have:    have,
			Want:    amount,
		}
	}
	l.balances[asset][account] = have - amount
	return nil
}
