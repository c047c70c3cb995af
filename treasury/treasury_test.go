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

package treasury

import (
	"errors"
	"testing"

	"github.com/zenith-chromion/zenith/database"
	"github.com/zenith-chromion/zenith/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	underlying = token.Asset("ZNT")
	shares     = token.Asset("ZNT-LP")

	govAddr = token.Address("governance")
	alice   = token.Address("alice")
	bob     = token.Address("bob")
	mgrAddr = token.Address("manager1")
)

func newTestTreasury(t *testing.T) (*Treasury, *token.Ledger) {
	t.Helper()
	ledger := token.NewLedger()
	treasury, err := NewTreasury(TreasuryConfig{
		Ledger:          ledger,
		UnderlyingAsset: underlying,
		ShareAsset:      shares,
		GovAuthority:    govAddr,
	})
	require.NoError(t, err)
	return treasury, ledger
}

func fund(t *testing.T, ledger *token.Ledger, account token.Address, amount uint64) {
	t.Helper()
	require.NoError(t, ledger.Mint(underlying, account, amount))
}

func TestAddLiquidityMintsShares(t *testing.T) {
	treasury, ledger := newTestTreasury(t)
	fund(t, ledger, alice, 1000)
	require.NoError(t, treasury.AddLiquidity(alice, 400))
	assert.Equal(t, uint64(400), treasury.TotalLiquidity())
	assert.Equal(t, uint64(400), treasury.ShareBalance(alice))
	assert.Equal(t, uint64(400), treasury.TotalShares())
	assert.Equal(t, uint64(600), ledger.Balance(underlying, alice))
}

func TestAddLiquidityZeroAmount(t *testing.T) {
	treasury, _ := newTestTreasury(t)
	assert.ErrorIs(t, treasury.AddLiquidity(alice, 0), ErrInsufficientAmount)
}

func TestLiquidityRoundTrip(t *testing.T) {
	treasury, ledger := newTestTreasury(t)
	fund(t, ledger, alice, 1000)
	require.NoError(t, treasury.AddLiquidity(alice, 1000))
	require.NoError(t, treasury.RemoveLiquidity(alice, 1000))
	// Depositing X then redeeming all shares returns X exactly
	assert.Equal(t, uint64(1000), ledger.Balance(underlying, alice))
	assert.Equal(t, uint64(0), treasury.TotalLiquidity())
	assert.Equal(t, uint64(0), treasury.TotalShares())
}

func TestRemoveLiquidityProRata(t *testing.T) {
	treasury, ledger := newTestTreasury(t)
	fund(t, ledger, alice, 600)
	fund(t, ledger, bob, 400)
	require.NoError(t, treasury.AddLiquidity(alice, 600))
	require.NoError(t, treasury.AddLiquidity(bob, 400))
	// Profit lands in the pool, inflating every share's redemption value
	fund(t, ledger, treasury.config.Custody, 500)
	require.NoError(t, treasury.RemoveLiquidity(alice, 600))
	// 600 shares x 1500 liquidity / 1000 shares = 900
	assert.Equal(t, uint64(900), ledger.Balance(underlying, alice))
	assert.Equal(t, uint64(600), treasury.TotalLiquidity())
	assert.Equal(t, uint64(400), treasury.TotalShares())
}

func TestRemoveLiquidityInsufficientShares(t *testing.T) {
	treasury, ledger := newTestTreasury(t)
	fund(t, ledger, alice, 100)
	require.NoError(t, treasury.AddLiquidity(alice, 100))
	err := treasury.RemoveLiquidity(alice, 101)
	assert.ErrorIs(t, err, ErrInsufficientShares)
	assert.ErrorIs(t, treasury.RemoveLiquidity(alice, 0), ErrInsufficientAmount)
	// State unchanged
	assert.Equal(t, uint64(100), treasury.ShareBalance(alice))
}

func grantManager(t *testing.T, treasury *Treasury, subject token.Address, tier Tier) {
	t.Helper()
	require.NoError(t, treasury.GrantManager(govAddr, subject, tier))
}

func TestWithdrawFundsWithinCeiling(t *testing.T) {
	treasury, ledger := newTestTreasury(t)
	fund(t, ledger, alice, 1000)
	require.NoError(t, treasury.AddLiquidity(alice, 1000))
	grantManager(t, treasury, mgrAddr, TierT1)
	// T1 limit is 10% of 1000
	require.NoError(t, treasury.WithdrawFunds(mgrAddr, 60))
	require.NoError(t, treasury.WithdrawFunds(mgrAddr, 40))
	assert.Equal(t, uint64(100), ledger.Balance(underlying, mgrAddr))
	mgr, ok := treasury.Manager(mgrAddr)
	require.True(t, ok)
	assert.Equal(t, uint64(100), mgr.Withdrawn)
}

func TestWithdrawFundsLimitExceeded(t *testing.T) {
	treasury, ledger := newTestTreasury(t)
	fund(t, ledger, alice, 1000)
	require.NoError(t, treasury.AddLiquidity(alice, 1000))
	grantManager(t, treasury, mgrAddr, TierT1)
	err := treasury.WithdrawFunds(mgrAddr, 150)
	require.Error(t, err)
	var limitErr *WithdrawLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, uint64(100), limitErr.Ceiling)
	// Outstanding withdrawn is unchanged
	mgr, _ := treasury.Manager(mgrAddr)
	assert.Equal(t, uint64(0), mgr.Withdrawn)
}

func TestWithdrawCeilingTracksLiquidity(t *testing.T) {
	treasury, ledger := newTestTreasury(t)
	fund(t, ledger, alice, 1000)
	require.NoError(t, treasury.AddLiquidity(alice, 1000))
	grantManager(t, treasury, mgrAddr, TierT1)
	require.NoError(t, treasury.WithdrawFunds(mgrAddr, 100))
	// Pool shrank to 900; ceiling is now 90 and fully consumed
	err := treasury.WithdrawFunds(mgrAddr, 1)
	var limitErr *WithdrawLimitError
	require.True(t, errors.As(err, &limitErr))
	// More liquidity raises the ceiling again
	fund(t, ledger, bob, 2000)
	require.NoError(t, treasury.AddLiquidity(bob, 2000))
	require.NoError(t, treasury.WithdrawFunds(mgrAddr, 100))
}

func TestWithdrawFundsNotManager(t *testing.T) {
	treasury, _ := newTestTreasury(t)
	assert.ErrorIs(t, treasury.WithdrawFunds(bob, 10), ErrNotManager)
	assert.ErrorIs(t, treasury.WithdrawFunds(bob, 0), ErrInsufficientAmount)
}

func TestReturnFundsWithProfit(t *testing.T) {
	treasury, ledger := newTestTreasury(t)
	fund(t, ledger, alice, 1000)
	require.NoError(t, treasury.AddLiquidity(alice, 1000))
	grantManager(t, treasury, mgrAddr, TierT1)
	require.NoError(t, treasury.WithdrawFunds(mgrAddr, 100))
	// Manager made 30 profit elsewhere
	fund(t, ledger, mgrAddr, 30)
	require.NoError(t, treasury.ReturnFunds(mgrAddr, 130))
	// T1 royalty is 10% of the 30 profit
	assert.Equal(t, uint64(3), ledger.Balance(underlying, mgrAddr))
	mgr, _ := treasury.Manager(mgrAddr)
	assert.Equal(t, uint64(0), mgr.Withdrawn)
	// Pool kept the principal plus profit minus royalty
	assert.Equal(t, uint64(1027), treasury.TotalLiquidity())
}

func TestReturnFundsPartial(t *testing.T) {
	treasury, ledger := newTestTreasury(t)
	fund(t, ledger, alice, 1000)
	require.NoError(t, treasury.AddLiquidity(alice, 1000))
	grantManager(t, treasury, mgrAddr, TierT1)
	require.NoError(t, treasury.WithdrawFunds(mgrAddr, 100))
	require.NoError(t, treasury.ReturnFunds(mgrAddr, 40))
	mgr, _ := treasury.Manager(mgrAddr)
	assert.Equal(t, uint64(60), mgr.Withdrawn)
	assert.Equal(t, uint64(60), ledger.Balance(underlying, mgrAddr))
}

func TestMutatorsRequireAuthority(t *testing.T) {
	treasury, _ := newTestTreasury(t)
	assert.ErrorIs(t, treasury.GrantManager(bob, mgrAddr, TierT1), ErrUnauthorized)
	assert.ErrorIs(t, treasury.RevokeManager(bob, mgrAddr), ErrUnauthorized)
	assert.ErrorIs(t, treasury.SetManagerTier(bob, mgrAddr, TierT2), ErrUnauthorized)
	assert.ErrorIs(t, treasury.SetTierRoyalty(bob, TierT1, 5), ErrUnauthorized)
	assert.ErrorIs(t, treasury.SetTierWithdrawLimit(bob, TierT1, 5), ErrUnauthorized)
}

func TestGrantManagerValidation(t *testing.T) {
	treasury, _ := newTestTreasury(t)
	grantManager(t, treasury, mgrAddr, TierT2)
	assert.ErrorIs(
		t,
		treasury.GrantManager(govAddr, mgrAddr, TierT1),
		ErrAlreadyManager,
	)
	assert.ErrorIs(
		t,
		treasury.GrantManager(govAddr, bob, Tier(9)),
		ErrUnknownTier,
	)
	// Zero tier falls back to the default
	require.NoError(t, treasury.GrantManager(govAddr, bob, 0))
	mgr, _ := treasury.Manager(bob)
	assert.Equal(t, DefaultTier, mgr.Tier)
}

func TestRevokeManagerResetsState(t *testing.T) {
	treasury, ledger := newTestTreasury(t)
	fund(t, ledger, alice, 1000)
	require.NoError(t, treasury.AddLiquidity(alice, 1000))
	grantManager(t, treasury, mgrAddr, TierT1)
	require.NoError(t, treasury.WithdrawFunds(mgrAddr, 50))
	require.NoError(t, treasury.RevokeManager(govAddr, mgrAddr))
	_, ok := treasury.Manager(mgrAddr)
	assert.False(t, ok)
	assert.ErrorIs(t, treasury.RevokeManager(govAddr, mgrAddr), ErrNotManager)
}

func TestSetManagerTier(t *testing.T) {
	treasury, _ := newTestTreasury(t)
	grantManager(t, treasury, mgrAddr, TierT1)
	assert.ErrorIs(
		t,
		treasury.SetManagerTier(govAddr, mgrAddr, TierT1),
		ErrSameTier,
	)
	require.NoError(t, treasury.SetManagerTier(govAddr, mgrAddr, TierT3))
	mgr, _ := treasury.Manager(mgrAddr)
	assert.Equal(t, TierT3, mgr.Tier)
}

func TestSetTierPercentValidation(t *testing.T) {
	treasury, _ := newTestTreasury(t)
	assert.ErrorIs(
		t,
		treasury.SetTierRoyalty(govAddr, TierT1, 101),
		ErrInvalidPercent,
	)
	assert.ErrorIs(
		t,
		treasury.SetTierWithdrawLimit(govAddr, TierT1, 101),
		ErrInvalidPercent,
	)
	require.NoError(t, treasury.SetTierRoyalty(govAddr, TierT1, 25))
	require.NoError(t, treasury.SetTierWithdrawLimit(govAddr, TierT1, 50))
	params, ok := treasury.TierParams(TierT1)
	require.True(t, ok)
	assert.Equal(t, uint64(25), params.RoyaltyPct)
	assert.Equal(t, uint64(50), params.WithdrawLimitPct)
}

func TestTransferAuthority(t *testing.T) {
	treasury, _ := newTestTreasury(t)
	assert.ErrorIs(
		t,
		treasury.TransferAuthority(bob, bob),
		ErrUnauthorized,
	)
	require.NoError(t, treasury.TransferAuthority(govAddr, bob))
	require.NoError(t, treasury.GrantManager(bob, mgrAddr, TierT1))
	assert.ErrorIs(
		t,
		treasury.GrantManager(govAddr, alice, TierT1),
		ErrUnauthorized,
	)
}

// proposerStub records the last forwarded proposal
type proposerStub struct {
	origin  token.Address
	kind    ProposalKind
	subject token.Address
	value   uint64
	tier    Tier
}

func (p *proposerStub) CreateProposal(
	origin token.Address,
	kind ProposalKind,
	subject token.Address,
	value uint64,
	tier Tier,
) (uint64, error) {
	p.origin = origin
	p.kind = kind
	p.subject = subject
	p.value = value
	p.tier = tier
	return 42, nil
}

func TestSubmitProposal(t *testing.T) {
	treasury, _ := newTestTreasury(t)
	_, err := treasury.SubmitProposal(KindAddManager, mgrAddr, 0, TierT2)
	assert.ErrorIs(t, err, ErrNoProposer)
	stub := &proposerStub{}
	treasury.SetProposer(stub)
	id, err := treasury.SubmitProposal(KindAddManager, mgrAddr, 0, TierT2)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, treasury.config.Address, stub.origin)
	assert.Equal(t, KindAddManager, stub.kind)
	assert.Equal(t, TierT2, stub.tier)
}

func TestTreasuryPersistence(t *testing.T) {
	db, err := database.New(nil, "")
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck
	ledger := token.NewLedger()
	cfg := TreasuryConfig{
		Database:        db,
		Ledger:          ledger,
		UnderlyingAsset: underlying,
		ShareAsset:      shares,
		GovAuthority:    govAddr,
	}
	treasury, err := NewTreasury(cfg)
	require.NoError(t, err)
	grantManager(t, treasury, mgrAddr, TierT2)
	fund(t, ledger, alice, 1000)
	require.NoError(t, treasury.AddLiquidity(alice, 1000))
	require.NoError(t, treasury.WithdrawFunds(mgrAddr, 150))
	require.NoError(t, treasury.SetTierRoyalty(govAddr, TierT2, 33))
	// A fresh instance over the same store sees the same state
	reloaded, err := NewTreasury(cfg)
	require.NoError(t, err)
	mgr, ok := reloaded.Manager(mgrAddr)
	require.True(t, ok)
	assert.Equal(t, TierT2, mgr.Tier)
	assert.Equal(t, uint64(150), mgr.Withdrawn)
	params, _ := reloaded.TierParams(TierT2)
	assert.Equal(t, uint64(33), params.RoyaltyPct)
}
