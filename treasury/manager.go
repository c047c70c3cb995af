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

// WithdrawFunds lends pooled liquidity to a fund manager. The cumulative
// outstanding withdrawal may never exceed tierLimitPct% of the pool's
// current total liquidity, evaluated at call time.
func (t *Treasury) WithdrawFunds(
	manager token.Address,
	amount uint64,
) error {
	if amount == 0 {
		return ErrInsufficientAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	mgr, ok := t.managers[manager]
	if !ok {
		return ErrNotManager
	}
	params := t.tiers[mgr.Tier]
	totalLiquidity := t.ledger.Balance(
		t.config.UnderlyingAsset,
		t.config.Custody,
	)
	ceiling := percentOf(totalLiquidity, params.WithdrawLimitPct)
	if mgr.Withdrawn+amount > ceiling {
		return &WithdrawLimitError{
			Manager:   manager,
			Requested: amount,
			Withdrawn: mgr.Withdrawn,
			Ceiling:   ceiling,
		}
	}
	if err := t.ledger.Transfer(
		t.config.UnderlyingAsset,
		t.config.Custody,
		manager,
		amount,
	); err != nil {
		return fmt.Errorf("failed to withdraw funds: %w", err)
	}
	mgr.Withdrawn += amount
	if err := t.storeManager(manager, mgr); err != nil {
		return err
	}
	t.logger.Info(
		"funds withdrawn",
		"manager", manager,
		"amount", amount,
		"outstanding", mgr.Withdrawn,
	)
	if t.metrics != nil {
		t.metrics.withdrawals.Inc()
	}
	t.updatePoolMetrics()
	t.emit(FundsWithdrawnEventType, FundsWithdrawnEvent{
		Manager:     manager,
		Amount:      amount,
		Outstanding: mgr.Withdrawn,
	})
	return nil
}

// ReturnFunds repays against a fund manager's outstanding withdrawn
// balance. A repayment above the outstanding balance is profit: the
// tier-specific royalty on the profit is paid back to the manager from pool
// custody and the outstanding balance resets to zero.
func (t *Treasury) ReturnFunds(
	manager token.Address,
	amount uint64,
) error {
	if amount == 0 {
		return ErrInsufficientAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	mgr, ok := t.managers[manager]
	if !ok {
		return ErrNotManager
	}
	if err := t.ledger.Transfer(
		t.config.UnderlyingAsset,
		manager,
		t.config.Custody,
		amount,
	); err != nil {
		return fmt.Errorf("failed to return funds: %w", err)
	}
	var royalty uint64
	if amount > mgr.Withdrawn {
		profit := amount - mgr.Withdrawn
		params := t.tiers[mgr.Tier]
		royalty = percentOf(profit, params.RoyaltyPct)
		if royalty > 0 {
			if err := t.ledger.Transfer(
				t.config.UnderlyingAsset,
				t.config.Custody,
				manager,
				royalty,
			); err != nil {
				return fmt.Errorf("failed to pay royalty: %w", err)
			}
		}
		mgr.Withdrawn = 0
	} else {
		mgr.Withdrawn -= amount
	}
	if err := t.storeManager(manager, mgr); err != nil {
		return err
	}
	t.logger.Info(
		"funds returned",
		"manager", manager,
		"amount", amount,
		"royalty", royalty,
		"outstanding", mgr.Withdrawn,
	)
	if t.metrics != nil && royalty > 0 {
		t.metrics.royaltiesPaid.Add(float64(royalty))
	}
	t.updatePoolMetrics()
	t.emit(FundsReturnedEventType, FundsReturnedEvent{
		Manager:     manager,
		Amount:      amount,
		Royalty:     royalty,
		Outstanding: mgr.Withdrawn,
	})
	return nil
}

// GrantManager grants the fund-manager role. Callable only via the
// governance decision path.
func (t *Treasury) GrantManager(
	caller token.Address,
	subject token.Address,
	tier Tier,
) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.authority {
		return ErrUnauthorized
	}
	if tier == 0 {
		tier = DefaultTier
	}
	if _, ok := t.tiers[tier]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTier, tier)
	}
	if _, ok := t.managers[subject]; ok {
		return ErrAlreadyManager
	}
	mgr := &ManagerAccount{Tier: tier}
	t.managers[subject] = mgr
	if err := t.storeManager(subject, mgr); err != nil {
		return err
	}
	t.logger.Info(
		"fund manager granted",
		"subject", subject,
		"tier", tier,
	)
	if t.metrics != nil {
		t.metrics.managers.Inc()
	}
	t.emit(ManagerGrantedEventType, ManagerGrantedEvent{
		Subject: subject,
		Tier:    tier,
	})
	return nil
}

// RevokeManager clears the fund-manager role and resets the account's
// counters. Callable only via the governance decision path.
func (t *Treasury) RevokeManager(
	caller token.Address,
	subject token.Address,
) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.authority {
		return ErrUnauthorized
	}
	if _, ok := t.managers[subject]; !ok {
		return ErrNotManager
	}
	delete(t.managers, subject)
	if err := t.deleteManager(subject); err != nil {
		return err
	}
	t.logger.Info("fund manager revoked", "subject", subject)
	if t.metrics != nil {
		t.metrics.managers.Dec()
	}
	t.emit(ManagerRevokedEventType, ManagerRevokedEvent{Subject: subject})
	return nil
}

// SetManagerTier changes a fund manager's tier. The new tier must differ
// from the current one. Callable only via the governance decision path.
func (t *Treasury) SetManagerTier(
	caller token.Address,
	subject token.Address,
	tier Tier,
) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.authority {
		return ErrUnauthorized
	}
	mgr, ok := t.managers[subject]
	if !ok {
		return ErrNotManager
	}
	if _, ok := t.tiers[tier]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTier, tier)
	}
	if mgr.Tier == tier {
		return ErrSameTier
	}
	prevTier := mgr.Tier
	mgr.Tier = tier
	if err := t.storeManager(subject, mgr); err != nil {
		return err
	}
	t.logger.Info(
		"fund manager tier changed",
		"subject", subject,
		"from", prevTier,
		"to", tier,
	)
	t.emit(TierChangedEventType, TierChangedEvent{
		Subject:  subject,
		PrevTier: prevTier,
		Tier:     tier,
	})
	return nil
}

// SetTierRoyalty changes the royalty percentage for a tier. Callable only
// via the governance decision path.
func (t *Treasury) SetTierRoyalty(
	caller token.Address,
	tier Tier,
	pct uint64,
) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.authority {
		return ErrUnauthorized
	}
	params, ok := t.tiers[tier]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTier, tier)
	}
	if pct > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidPercent, pct)
	}
	params.RoyaltyPct = pct
	t.tiers[tier] = params
	if err := t.storeTiers(); err != nil {
		return err
	}
	t.logger.Info("tier royalty changed", "tier", tier, "pct", pct)
	t.emit(RoyaltyChangedEventType, RoyaltyChangedEvent{
		Tier: tier,
		Pct:  pct,
	})
	return nil
}

// SetTierWithdrawLimit changes the withdrawal ceiling percentage for a
// tier. Callable only via the governance decision path.
func (t *Treasury) SetTierWithdrawLimit(
	caller token.Address,
	tier Tier,
	pct uint64,
) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.authority {
		return ErrUnauthorized
	}
	params, ok := t.tiers[tier]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTier, tier)
	}
	if pct > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidPercent, pct)
	}
	params.WithdrawLimitPct = pct
	t.tiers[tier] = params
	if err := t.storeTiers(); err != nil {
		return err
	}
	t.logger.Info("tier withdraw limit changed", "tier", tier, "pct", pct)
	t.emit(WithdrawLimitChangedEventType, WithdrawLimitChangedEvent{
		Tier: tier,
		Pct:  pct,
	})
	return nil
}
