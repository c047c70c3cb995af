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

// Package treasury implements the domain-local liquidity pool and
// fund-manager state machine: liquidity-provider shares, tiered withdrawal
// ceilings, and royalty settlement on fund return. Role, tier, royalty, and
// limit mutations are gated behind the governance decision path.
package treasury

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"

	"github.com/zenith-chromion/zenith/database"
	"github.com/zenith-chromion/zenith/event"
	"github.com/zenith-chromion/zenith/token"

	"github.com/prometheus/client_golang/prometheus"
)

// Tier is the ordinal role class of a fund manager. It determines the
// withdrawal ceiling and royalty percentages.
type Tier uint8

const (
	TierT1 Tier = 1
	TierT2 Tier = 2
	TierT3 Tier = 3
)

// DefaultTier is assigned when a role grant does not name a tier
const DefaultTier = TierT1

// TierParams holds the governance-controlled percentages for a tier
type TierParams struct {
	WithdrawLimitPct uint64
	RoyaltyPct       uint64
}

// ProposalKind discriminates what a governance proposal mutates when
// executed against the treasury
type ProposalKind uint8

const (
	KindAddManager       ProposalKind = 1
	KindRemoveManager    ProposalKind = 2
	KindSetTier          ProposalKind = 3
	KindSetRoyalty       ProposalKind = 4
	KindSetWithdrawLimit ProposalKind = 5
)

func (k ProposalKind) String() string {
	switch k {
	case KindAddManager:
		return "add-manager"
	case KindRemoveManager:
		return "remove-manager"
	case KindSetTier:
		return "set-tier"
	case KindSetRoyalty:
		return "set-royalty"
	case KindSetWithdrawLimit:
		return "set-withdraw-limit"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Proposer originates governance proposals on behalf of the treasury. The
// local governance instance implements this; the handle pair is injected at
// wiring time to avoid a package cycle.
type Proposer interface {
	CreateProposal(
		origin token.Address,
		kind ProposalKind,
		subject token.Address,
		value uint64,
		tier Tier,
	) (uint64, error)
}

var (
	ErrInsufficientAmount = errors.New("amount must be greater than zero")
	ErrInsufficientShares = errors.New("insufficient share balance")
	ErrNotManager         = errors.New("account is not a fund manager")
	ErrAlreadyManager     = errors.New("account is already a fund manager")
	ErrSameTier           = errors.New("tier matches current tier")
	ErrUnknownTier        = errors.New("unknown tier")
	ErrInvalidPercent     = errors.New("percentage must be in [0,100]")
	ErrUnauthorized       = errors.New("caller is not authorized")
	ErrNoProposer         = errors.New("no proposer configured")
)

// WithdrawLimitError wraps the limit check failure with the numbers that
// produced it
type WithdrawLimitError struct {
	Manager   token.Address
	Requested uint64
	Withdrawn uint64
	Ceiling   uint64
}

func (e *WithdrawLimitError) Error() string {
	return fmt.Sprintf(
		"withdraw limit exceeded: manager=%s requested=%d withdrawn=%d ceiling=%d",
		e.Manager,
		e.Requested,
		e.Withdrawn,
		e.Ceiling,
	)
}

// ManagerAccount is the per-manager treasury state
type ManagerAccount struct {
	Tier      Tier
	Withdrawn uint64
}

type TreasuryConfig struct {
	Logger          *slog.Logger
	EventBus        *event.EventBus
	PromRegistry    prometheus.Registerer
	Database        *database.Database
	Ledger          *token.Ledger
	UnderlyingAsset token.Asset
	ShareAsset      token.Asset
	// Address is the treasury's own account identity, used as the proposal
	// origin when forwarding proposals to governance
	Address token.Address
	// Custody is the pool custody account on the domain ledger
	Custody token.Address
	// GovAuthority is the sole caller allowed on decision-gated mutators
	GovAuthority token.Address
}

type Treasury struct {
	config    TreasuryConfig
	logger    *slog.Logger
	eventBus  *event.EventBus
	db        *database.Database
	ledger    *token.Ledger
	metrics   *treasuryMetrics
	proposer  Proposer
	authority token.Address
	managers  map[token.Address]*ManagerAccount
	tiers     map[Tier]TierParams
	mu        sync.Mutex
}

func NewTreasury(config TreasuryConfig) (*Treasury, error) {
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		config.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if config.Address == "" {
		config.Address = "treasury"
	}
	if config.Custody == "" {
		config.Custody = "treasury:pool"
	}
	t := &Treasury{
		config:    config,
		logger:    config.Logger.With("component", "treasury"),
		eventBus:  config.EventBus,
		db:        config.Database,
		ledger:    config.Ledger,
		authority: config.GovAuthority,
		managers:  make(map[token.Address]*ManagerAccount),
		tiers: map[Tier]TierParams{
			TierT1: {WithdrawLimitPct: 10, RoyaltyPct: 10},
			TierT2: {WithdrawLimitPct: 20, RoyaltyPct: 15},
			TierT3: {WithdrawLimitPct: 30, RoyaltyPct: 20},
		},
	}
	if config.PromRegistry != nil {
		t.initMetrics(config.PromRegistry)
	}
	if err := t.load(); err != nil {
		return nil, fmt.Errorf("failed to load treasury state: %w", err)
	}
	return t, nil
}

// SetProposer installs the governance handle used for proposal origination.
// Called once at wiring time.
func (t *Treasury) SetProposer(proposer Proposer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.proposer = proposer
}

// TransferAuthority moves the decision-gated mutator authority to a new
// address. Only the current authority may transfer it.
func (t *Treasury) TransferAuthority(
	caller token.Address,
	newAuthority token.Address,
) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.authority {
		return ErrUnauthorized
	}
	t.authority = newAuthority
	return nil
}

// SubmitProposal forwards a proposal to local governance with the treasury
// as the originating authority
func (t *Treasury) SubmitProposal(
	kind ProposalKind,
	subject token.Address,
	value uint64,
	tier Tier,
) (uint64, error) {
	t.mu.Lock()
	proposer := t.proposer
	t.mu.Unlock()
	if proposer == nil {
		return 0, ErrNoProposer
	}
	return proposer.CreateProposal(t.config.Address, kind, subject, value, tier)
}

// TotalLiquidity returns the pool's current underlying asset balance
func (t *Treasury) TotalLiquidity() uint64 {
	return t.ledger.Balance(t.config.UnderlyingAsset, t.config.Custody)
}

// TotalShares returns the outstanding share supply
func (t *Treasury) TotalShares() uint64 {
	return t.ledger.TotalSupply(t.config.ShareAsset)
}

// ShareBalance returns an account's share balance
func (t *Treasury) ShareBalance(account token.Address) uint64 {
	return t.ledger.Balance(t.config.ShareAsset, account)
}

// Manager returns the account state for a fund manager
func (t *Treasury) Manager(account token.Address) (ManagerAccount, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mgr, ok := t.managers[account]
	if !ok {
		return ManagerAccount{}, false
	}
	return *mgr, true
}

// TierParams returns the current parameters for a tier
func (t *Treasury) TierParams(tier Tier) (TierParams, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	params, ok := t.tiers[tier]
	return params, ok
}

// percentOf computes pct% of total without intermediate overflow
func percentOf(total uint64, pct uint64) uint64 {
	ret := new(big.Int).SetUint64(total)
	ret.Mul(ret, new(big.Int).SetUint64(pct))
	ret.Div(ret, big.NewInt(100))
	return ret.Uint64()
}

// proRata computes amount*numerator/denominator without intermediate overflow
func proRata(amount uint64, numerator uint64, denominator uint64) uint64 {
	if denominator == 0 {
		return 0
	}
	ret := new(big.Int).SetUint64(amount)
	ret.Mul(ret, new(big.Int).SetUint64(numerator))
	ret.Div(ret, new(big.Int).SetUint64(denominator))
	return ret.Uint64()
}

func (t *Treasury) emit(eventType event.EventType, data any) {
	if t.eventBus != nil {
		t.eventBus.Publish(eventType, event.NewEvent(eventType, data))
	}
}
