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
	"github.com/zenith-chromion/zenith/event"
	"github.com/zenith-chromion/zenith/token"
)

const (
	LiquidityAddedEventType       event.EventType = "treasury.liquidity_added"
	LiquidityRemovedEventType     event.EventType = "treasury.liquidity_removed"
	FundsWithdrawnEventType       event.EventType = "treasury.funds_withdrawn"
	FundsReturnedEventType        event.EventType = "treasury.funds_returned"
	ManagerGrantedEventType       event.EventType = "treasury.manager_granted"
	ManagerRevokedEventType       event.EventType = "treasury.manager_revoked"
	TierChangedEventType          event.EventType = "treasury.tier_changed"
	RoyaltyChangedEventType       event.EventType = "treasury.royalty_changed"
	WithdrawLimitChangedEventType event.EventType = "treasury.withdraw_limit_changed"
)

type LiquidityAddedEvent struct {
	Provider token.Address
	Amount   uint64
	Shares   uint64
}

type LiquidityRemovedEvent struct {
	Provider token.Address
	Shares   uint64
	Payout   uint64
}

type FundsWithdrawnEvent struct {
	Manager     token.Address
	Amount      uint64
	Outstanding uint64
}

type FundsReturnedEvent struct {
	Manager     token.Address
	Amount      uint64
	Royalty     uint64
	Outstanding uint64
}

type ManagerGrantedEvent struct {
	Subject token.Address
	Tier    Tier
}

type ManagerRevokedEvent struct {
	Subject token.Address
}

type TierChangedEvent struct {
	Subject  token.Address
	PrevTier Tier
	Tier     Tier
}

type RoyaltyChangedEvent struct {
	Tier Tier
	Pct  uint64
}

type WithdrawLimitChangedEvent struct {
	Tier Tier
	Pct  uint64
}
