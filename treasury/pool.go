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
	"fmt"

	"github.com/zenith-chromion/zenith/token"
)

// AddLiquidity transfers the amount of the underlying asset into pool
// custody and mints shares 1:1 to the depositor. Share price is always 1:1
// at mint; proportional dilution happens implicitly because redemptions use
// the pool's total balance.
func (t *Treasury) AddLiquidity(
	provider token.Address,
	amount uint64,
) error {
	if amount == 0 {
		return ErrInsufficientAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ledger.Transfer(
		t.config.UnderlyingAsset,
		provider,
		t.config.Custody,
		amount,
	); err != nil {
		return fmt.Errorf("failed to deposit liquidity: %w", err)
	}
	if err := t.ledger.Mint(t.config.ShareAsset, provider, amount); err != nil {
		// Unwind the deposit; mint only fails on a zero amount, which was
		// checked above, so this path should be unreachable
		t.ledger.Transfer( //nolint:errcheck
			t.config.UnderlyingAsset,
			t.config.Custody,
			provider,
			amount,
		)
		return fmt.Errorf("failed to mint shares: %w", err)
	}
	t.logger.Info(
		"liquidity added",
		"provider", provider,
		"amount", amount,
	)
	t.updatePoolMetrics()
	t.emit(LiquidityAddedEventType, LiquidityAddedEvent{
		Provider: provider,
		Amount:   amount,
		Shares:   amount,
	})
	return nil
}

// RemoveLiquidity burns the given share amount and pays out the
// proportional slice of the pool: shares x totalLiquidity / totalShares
func (t *Treasury) RemoveLiquidity(
	provider token.Address,
	shareAmount uint64,
) error {
	if shareAmount == 0 {
		return ErrInsufficientAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if have := t.ledger.Balance(t.config.ShareAsset, provider); have < shareAmount {
		return fmt.Errorf(
			"%w: have %d, need %d",
			ErrInsufficientShares,
			have,
			shareAmount,
		)
	}
	// Redemption amount is computed against the share supply before burning
	totalLiquidity := t.ledger.Balance(
		t.config.UnderlyingAsset,
		t.config.Custody,
	)
	totalShares := t.ledger.TotalSupply(t.config.ShareAsset)
	payout := proRata(shareAmount, totalLiquidity, totalShares)
	if err := t.ledger.Burn(t.config.ShareAsset, provider, shareAmount); err != nil {
		return fmt.Errorf("failed to burn shares: %w", err)
	}
	if payout > 0 {
		if err := t.ledger.Transfer(
			t.config.UnderlyingAsset,
			t.config.Custody,
			provider,
			payout,
		); err != nil {
			// Restore the burned shares; the payout is bounded by the pool
			// balance so this path should be unreachable
			t.ledger.Mint( //nolint:errcheck
				t.config.ShareAsset,
				provider,
				shareAmount,
			)
			return fmt.Errorf("failed to pay out redemption: %w", err)
		}
	}
	t.logger.Info(
		"liquidity removed",
		"provider", provider,
		"shares", shareAmount,
		"payout", payout,
	)
	t.updatePoolMetrics()
	t.emit(LiquidityRemovedEventType, LiquidityRemovedEvent{
		Provider: provider,
		Shares:   shareAmount,
		Payout:   payout,
	})
	return nil
}
