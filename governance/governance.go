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

// Package governance implements the per-domain proposal lifecycle: creation,
// time-boxed voting gated by live liquidity stake, settlement of closed
// tallies to the aggregation coordinator, and execution of returned
// decisions against the treasury.
package governance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/zenith-chromion/zenith/database"
	"github.com/zenith-chromion/zenith/database/models"
	"github.com/zenith-chromion/zenith/event"
	"github.com/zenith-chromion/zenith/relay"
	"github.com/zenith-chromion/zenith/token"
	"github.com/zenith-chromion/zenith/treasury"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultVotingWindow = 24 * time.Hour

var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrDeadlineExceeded = errors.New("voting deadline exceeded")
	ErrAlreadyVoted     = errors.New("account has already voted")
	ErrNotEligible      = errors.New("account holds no liquidity shares")
	ErrUnauthorized     = errors.New("caller is not authorized")
	ErrAlreadyDecided   = errors.New("proposal already decided")
	ErrNoSender         = errors.New("no relay sender configured")
	ErrNotReady         = errors.New("no proposal ready to settle")
)

// Proposal is the domain-local proposal record. Tallies are immutable once
// the deadline passes and Executed transitions false to true exactly once.
type Proposal struct {
	Voters       map[token.Address]bool
	Subject      token.Address
	Deadline     time.Time
	Id           uint64
	Value        uint64
	VotesFor     uint64
	VotesAgainst uint64
	Kind         treasury.ProposalKind
	Tier         treasury.Tier
	Executed     bool
	Decided      bool
}

// Executor applies approved decisions to the local treasury. The treasury
// implements this; the handle pair is injected at wiring time to avoid a
// package cycle.
type Executor interface {
	GrantManager(
		caller token.Address,
		subject token.Address,
		tier treasury.Tier,
	) error
	RevokeManager(caller token.Address, subject token.Address) error
	SetManagerTier(
		caller token.Address,
		subject token.Address,
		tier treasury.Tier,
	) error
	SetTierRoyalty(caller token.Address, tier treasury.Tier, pct uint64) error
	SetTierWithdrawLimit(
		caller token.Address,
		tier treasury.Tier,
		pct uint64,
	) error
}

// Eligibility answers the live share-balance check for voter gating
type Eligibility interface {
	ShareBalance(account token.Address) uint64
}

// Sender dispatches relay payloads. The domain's relay endpoint implements
// this.
type Sender interface {
	Send(
		ctx context.Context,
		dest relay.DomainID,
		payload []byte,
		payer token.Address,
	) (relay.MessageID, error)
}

type GovernanceConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Database     *database.Database
	Eligibility  Eligibility
	Executor     Executor
	// ProposalAuthority is the sole account allowed to originate proposals,
	// normally the local treasury
	ProposalAuthority token.Address
	// Callback is this governance instance's own account identity. It is
	// recorded in outbound tally reports as the decision callback target and
	// pays relay fees for settlement sends.
	Callback token.Address
	// ExecAuthority is the caller identity presented to the treasury on
	// decision-gated mutators
	ExecAuthority token.Address
	Domain        relay.DomainID
	// CoordinatorDomain hosts the aggregation coordinator
	CoordinatorDomain relay.DomainID
	VotingWindow      time.Duration
}

type Governance struct {
	config    GovernanceConfig
	logger    *slog.Logger
	eventBus  *event.EventBus
	db        *database.Database
	metrics   *governanceMetrics
	sender    Sender
	proposals map[uint64]*Proposal
	// nextId is the next proposal identifier to assign; pointer is the
	// lowest not-yet-executed proposal, advanced strictly in creation order
	nextId  uint64
	pointer uint64
	now     func() time.Time
	mu      sync.Mutex
}

func NewGovernance(config GovernanceConfig) (*Governance, error) {
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		config.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if config.VotingWindow == 0 {
		config.VotingWindow = defaultVotingWindow
	}
	g := &Governance{
		config:    config,
		logger:    config.Logger.With("component", "governance"),
		eventBus:  config.EventBus,
		db:        config.Database,
		proposals: make(map[uint64]*Proposal),
		now:       time.Now,
	}
	if config.PromRegistry != nil {
		g.initMetrics(config.PromRegistry)
	}
	if err := g.load(); err != nil {
		return nil, fmt.Errorf("failed to load governance state: %w", err)
	}
	return g, nil
}

// SetSender installs the relay endpoint used for settlement sends. Called
// once at wiring time.
func (g *Governance) SetSender(sender Sender) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sender = sender
}

// CreateProposal opens a proposal with a fresh sequential id and a deadline
// one voting window out. Only the proposal authority may originate
// proposals.
func (g *Governance) CreateProposal(
	origin token.Address,
	kind treasury.ProposalKind,
	subject token.Address,
	value uint64,
	tier treasury.Tier,
) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if origin != g.config.ProposalAuthority {
		return 0, ErrUnauthorized
	}
	prop := &Proposal{
		Id:       g.nextId,
		Kind:     kind,
		Subject:  subject,
		Value:    value,
		Tier:     tier,
		Deadline: g.now().Add(g.config.VotingWindow),
		Voters:   make(map[token.Address]bool),
	}
	g.proposals[prop.Id] = prop
	g.nextId++
	if err := g.storeProposal(prop); err != nil {
		return 0, err
	}
	g.logger.Info(
		"proposal created",
		"proposal_id", prop.Id,
		"kind", kind.String(),
		"subject", prop.Subject,
		"deadline", prop.Deadline,
	)
	if g.metrics != nil {
		g.metrics.proposalsCreated.Inc()
	}
	g.emit(ProposalCreatedEventType, ProposalCreatedEvent{
		ProposalId: prop.Id,
		Kind:       kind,
		Subject:    subject,
		Deadline:   prop.Deadline,
	})
	return prop.Id, nil
}

// Vote casts a ballot on an open proposal. Eligibility is a live check
// against the voter's current share balance, not a snapshot at proposal
// creation.
func (g *Governance) Vote(
	voter token.Address,
	proposalId uint64,
	support bool,
) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	prop, ok := g.proposals[proposalId]
	if !ok {
		return fmt.Errorf("%w: %d", ErrProposalNotFound, proposalId)
	}
	if g.now().After(prop.Deadline) {
		return ErrDeadlineExceeded
	}
	if prop.Voters[voter] {
		return ErrAlreadyVoted
	}
	if g.config.Eligibility == nil ||
		g.config.Eligibility.ShareBalance(voter) == 0 {
		return ErrNotEligible
	}
	prop.Voters[voter] = true
	if support {
		prop.VotesFor++
	} else {
		prop.VotesAgainst++
	}
	if err := g.storeProposal(prop); err != nil {
		return err
	}
	g.logger.Info(
		"vote cast",
		"proposal_id", proposalId,
		"voter", voter,
		"support", support,
	)
	if g.metrics != nil {
		g.metrics.votesCast.Inc()
	}
	g.emit(VoteCastEventType, VoteCastEvent{
		ProposalId: proposalId,
		Voter:      voter,
		Support:    support,
	})
	return nil
}

// CheckReady reports whether the next unexecuted proposal has passed its
// deadline. Proposals settle strictly in creation order: an unready proposal
// blocks settlement of everything behind it.
func (g *Governance) CheckReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	prop, ok := g.proposals[g.pointer]
	if !ok {
		return false
	}
	return g.now().After(prop.Deadline)
}

// Settle packages the pointer proposal's closed tally, sends it to the
// aggregation coordinator, marks the proposal executed, and advances the
// pointer. If the send fails the proposal stays unexecuted and the next tick
// retries it.
func (g *Governance) Settle(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	prop, ok := g.proposals[g.pointer]
	if !ok || !g.now().After(prop.Deadline) {
		return ErrNotReady
	}
	if g.sender == nil {
		return ErrNoSender
	}
	payload, err := relay.EncodeTallyReport(&relay.TallyReport{
		ProposalId:   prop.Id,
		Domain:       g.config.Domain,
		VotesFor:     prop.VotesFor,
		VotesAgainst: prop.VotesAgainst,
		Callback:     g.config.Callback,
	})
	if err != nil {
		return fmt.Errorf("failed to encode tally report: %w", err)
	}
	msgId, err := g.sender.Send(
		ctx,
		g.config.CoordinatorDomain,
		payload,
		g.config.Callback,
	)
	if err != nil {
		return fmt.Errorf(
			"failed to send tally report for proposal %d: %w",
			prop.Id,
			err,
		)
	}
	prop.Executed = true
	g.pointer++
	if err := g.storeProposal(prop); err != nil {
		return err
	}
	if err := g.storePointer(); err != nil {
		return err
	}
	if g.db != nil {
		err := g.db.AddSettlement(&models.Settlement{
			ProposalId:   prop.Id,
			Domain:       uint64(g.config.Domain),
			VotesFor:     prop.VotesFor,
			VotesAgainst: prop.VotesAgainst,
			MessageId:    uint64(msgId),
		})
		if err != nil {
			return err
		}
	}
	g.logger.Info(
		"proposal settled",
		"proposal_id", prop.Id,
		"votes_for", prop.VotesFor,
		"votes_against", prop.VotesAgainst,
		"message_id", msgId,
	)
	if g.metrics != nil {
		g.metrics.settlements.Inc()
	}
	g.emit(ProposalSettledEventType, ProposalSettledEvent{
		ProposalId:   prop.Id,
		VotesFor:     prop.VotesFor,
		VotesAgainst: prop.VotesAgainst,
	})
	return nil
}

// OnDecision applies the aggregated approval decision for a proposal.
// Idempotent per proposal id: a repeated decision is rejected without
// re-executing the treasury mutation.
func (g *Governance) OnDecision(proposalId uint64, approved bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	prop, ok := g.proposals[proposalId]
	if !ok {
		return fmt.Errorf("%w: %d", ErrProposalNotFound, proposalId)
	}
	if prop.Decided {
		return fmt.Errorf("%w: %d", ErrAlreadyDecided, proposalId)
	}
	if approved {
		if err := g.execute(prop); err != nil {
			return fmt.Errorf(
				"failed to execute proposal %d: %w",
				proposalId,
				err,
			)
		}
	}
	prop.Decided = true
	if err := g.storeProposal(prop); err != nil {
		return err
	}
	if g.db != nil {
		err := g.db.AddDecision(&models.Decision{
			ProposalId: proposalId,
			Approved:   approved,
			Kind:       uint8(prop.Kind),
		})
		if err != nil {
			return err
		}
	}
	g.logger.Info(
		"proposal decision applied",
		"proposal_id", proposalId,
		"kind", prop.Kind.String(),
		"approved", approved,
	)
	if g.metrics != nil {
		g.metrics.decisionsApplied.Inc()
	}
	g.emit(ProposalExecutedEventType, ProposalExecutedEvent{
		ProposalId: proposalId,
		Kind:       prop.Kind,
		Approved:   approved,
	})
	return nil
}

// execute dispatches an approved proposal to the treasury by kind. Caller
// holds the lock.
func (g *Governance) execute(prop *Proposal) error {
	executor := g.config.Executor
	if executor == nil {
		return errors.New("no executor configured")
	}
	caller := g.config.ExecAuthority
	switch prop.Kind {
	case treasury.KindAddManager:
		return executor.GrantManager(caller, prop.Subject, prop.Tier)
	case treasury.KindRemoveManager:
		return executor.RevokeManager(caller, prop.Subject)
	case treasury.KindSetTier:
		return executor.SetManagerTier(caller, prop.Subject, prop.Tier)
	case treasury.KindSetRoyalty:
		return executor.SetTierRoyalty(caller, prop.Tier, prop.Value)
	case treasury.KindSetWithdrawLimit:
		return executor.SetTierWithdrawLimit(caller, prop.Tier, prop.Value)
	default:
		return fmt.Errorf("unknown proposal kind: %d", prop.Kind)
	}
}

// Proposal returns a copy of a proposal's current state
func (g *Governance) Proposal(proposalId uint64) (Proposal, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	prop, ok := g.proposals[proposalId]
	if !ok {
		return Proposal{}, false
	}
	ret := *prop
	ret.Voters = make(map[token.Address]bool, len(prop.Voters))
	for voter := range prop.Voters {
		ret.Voters[voter] = true
	}
	return ret, true
}

// Pointer returns the id of the next proposal to settle
func (g *Governance) Pointer() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pointer
}

func (g *Governance) emit(eventType event.EventType, data any) {
	if g.eventBus != nil {
		g.eventBus.Publish(eventType, event.NewEvent(eventType, data))
	}
}
