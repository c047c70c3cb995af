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

// Package coordinator implements the single authoritative vote-aggregation
// instance. It accumulates per-domain tally reports under a proposal id,
// finalizes the approval decision exactly once when every expected domain
// has reported, and fans the decision back out to each domain's recorded
// callback target. Aggregations that never complete are expired to a
// dead-letter record after a TTL.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zenith-chromion/zenith/database"
	"github.com/zenith-chromion/zenith/database/models"
	"github.com/zenith-chromion/zenith/event"
	"github.com/zenith-chromion/zenith/relay"
	"github.com/zenith-chromion/zenith/token"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultAggregationTTL = 72 * time.Hour

var (
	ErrUnknownDomain   = errors.New("report from unexpected domain")
	ErrDuplicateReport = errors.New("duplicate report for domain")
	ErrProposalExpired = errors.New("proposal aggregation expired")
	ErrNoSender        = errors.New("no relay sender configured")
)

// Sender dispatches relay payloads. The coordinator's relay endpoint
// implements this.
type Sender interface {
	Send(
		ctx context.Context,
		dest relay.DomainID,
		payload []byte,
		payer token.Address,
	) (relay.MessageID, error)
}

// Tally is the aggregation state for one proposal id. Domains only ever
// transition incomplete to complete, so the completion check is monotone
// under arbitrary report interleaving.
type Tally struct {
	Callbacks     map[relay.DomainID]token.Address
	FirstReportAt time.Time
	ProposalId    uint64
	TotalFor      uint64
	TotalAgainst  uint64
	Finalized     bool
	Approved      bool
}

func (t *Tally) reported(domain relay.DomainID) bool {
	_, ok := t.Callbacks[domain]
	return ok
}

type CoordinatorConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Database     *database.Database
	// ExpectedDomains is the fixed set of domains that must report before a
	// proposal finalizes
	ExpectedDomains []relay.DomainID
	// Account pays relay fees for outbound decision messages
	Account token.Address
	// AggregationTTL bounds how long an incomplete aggregation may wait for
	// missing domain reports before it is expired to a dead-letter record
	AggregationTTL time.Duration
}

type Coordinator struct {
	config   CoordinatorConfig
	logger   *slog.Logger
	eventBus *event.EventBus
	db       *database.Database
	metrics  *coordinatorMetrics
	sender   Sender
	expected map[relay.DomainID]bool
	tallies  map[uint64]*Tally
	expired  map[uint64]bool
	now      func() time.Time
	mu       sync.Mutex
}

func NewCoordinator(config CoordinatorConfig) (*Coordinator, error) {
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		config.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if len(config.ExpectedDomains) == 0 {
		return nil, errors.New("no expected domains configured")
	}
	if config.Account == "" {
		config.Account = "coordinator"
	}
	if config.AggregationTTL == 0 {
		config.AggregationTTL = defaultAggregationTTL
	}
	c := &Coordinator{
		config:   config,
		logger:   config.Logger.With("component", "coordinator"),
		eventBus: config.EventBus,
		db:       config.Database,
		expected: make(map[relay.DomainID]bool),
		tallies:  make(map[uint64]*Tally),
		expired:  make(map[uint64]bool),
		now:      time.Now,
	}
	for _, domain := range config.ExpectedDomains {
		c.expected[domain] = true
	}
	if config.PromRegistry != nil {
		c.initMetrics(config.PromRegistry)
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("failed to load coordinator state: %w", err)
	}
	return c, nil
}

// SetSender installs the relay endpoint used for decision fan-out. Called
// once at wiring time.
func (c *Coordinator) SetSender(sender Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sender = sender
}

// OnDomainReport accumulates one domain's tally for a proposal. Reports
// from outside the expected domain set, duplicates for an already-reported
// domain, and reports for finalized or expired proposals are rejected
// without touching the running totals. When the last expected domain
// reports, the decision is finalized and fanned out in the same call.
func (c *Coordinator) OnDomainReport(
	ctx context.Context,
	report *relay.TallyReport,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.expected[report.Domain] {
		return fmt.Errorf("%w: %d", ErrUnknownDomain, report.Domain)
	}
	if c.expired[report.ProposalId] {
		return fmt.Errorf("%w: %d", ErrProposalExpired, report.ProposalId)
	}
	tally, ok := c.tallies[report.ProposalId]
	if !ok {
		tally = &Tally{
			ProposalId:    report.ProposalId,
			Callbacks:     make(map[relay.DomainID]token.Address),
			FirstReportAt: c.now(),
		}
		c.tallies[report.ProposalId] = tally
	}
	if tally.Finalized || tally.reported(report.Domain) {
		return fmt.Errorf(
			"%w: proposal %d domain %d",
			ErrDuplicateReport,
			report.ProposalId,
			report.Domain,
		)
	}
	tally.Callbacks[report.Domain] = report.Callback
	tally.TotalFor += report.VotesFor
	tally.TotalAgainst += report.VotesAgainst
	c.logger.Info(
		"domain report recorded",
		"proposal_id", report.ProposalId,
		"domain", report.Domain,
		"votes_for", report.VotesFor,
		"votes_against", report.VotesAgainst,
		"reported", len(tally.Callbacks),
		"expected", len(c.expected),
	)
	if c.metrics != nil {
		c.metrics.reportsReceived.Inc()
	}
	c.emit(ReportReceivedEventType, ReportReceivedEvent{
		ProposalId: report.ProposalId,
		Domain:     report.Domain,
	})
	var finalizeErr error
	if len(tally.Callbacks) == len(c.expected) {
		finalizeErr = c.finalize(ctx, tally)
	}
	// Persist even on fan-out failure so the finalized flag survives restart
	if err := c.storeTally(tally); err != nil {
		return errors.Join(finalizeErr, err)
	}
	c.updatePendingMetric()
	return finalizeErr
}

// finalize computes the decision and fans it out to every domain's recorded
// callback target. Caller holds the lock. Ties favor approval.
func (c *Coordinator) finalize(ctx context.Context, tally *Tally) error {
	if c.sender == nil {
		return ErrNoSender
	}
	tally.Approved = tally.TotalFor >= tally.TotalAgainst
	tally.Finalized = true
	c.logger.Info(
		"proposal finalized",
		"proposal_id", tally.ProposalId,
		"total_for", tally.TotalFor,
		"total_against", tally.TotalAgainst,
		"approved", tally.Approved,
	)
	var sendErrs []error
	for domain, callback := range tally.Callbacks {
		payload, err := relay.EncodeDecision(&relay.Decision{
			ProposalId: tally.ProposalId,
			Approved:   tally.Approved,
			Callback:   callback,
		})
		if err != nil {
			sendErrs = append(sendErrs, err)
			continue
		}
		_, err = c.sender.Send(ctx, domain, payload, c.config.Account)
		if err != nil {
			// The decision stands even if a fan-out send fails; the relay
			// layer makes no delivery guarantee either way
			c.logger.Warn(
				"failed to send decision",
				"proposal_id", tally.ProposalId,
				"domain", domain,
				"error", err,
			)
			sendErrs = append(sendErrs, err)
		}
	}
	if c.metrics != nil {
		c.metrics.finalized.Inc()
	}
	c.emit(ProposalFinalizedEventType, ProposalFinalizedEvent{
		ProposalId:   tally.ProposalId,
		TotalFor:     tally.TotalFor,
		TotalAgainst: tally.TotalAgainst,
		Approved:     tally.Approved,
	})
	return errors.Join(sendErrs...)
}

// Tally returns a copy of a proposal's aggregation state
func (c *Coordinator) Tally(proposalId uint64) (Tally, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tally, ok := c.tallies[proposalId]
	if !ok {
		return Tally{}, false
	}
	ret := *tally
	ret.Callbacks = make(map[relay.DomainID]token.Address, len(tally.Callbacks))
	for domain, callback := range tally.Callbacks {
		ret.Callbacks[domain] = callback
	}
	return ret, true
}

// Expired reports whether a proposal's aggregation was expired to the
// dead-letter record
func (c *Coordinator) Expired(proposalId uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired[proposalId]
}

// SweepReady reports whether any incomplete aggregation has outlived the
// TTL. Side-effect free; pairs with Sweep for poll-then-act scheduling.
func (c *Coordinator) SweepReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-c.config.AggregationTTL)
	for _, tally := range c.tallies {
		if !tally.Finalized && tally.FirstReportAt.Before(cutoff) {
			return true
		}
	}
	return false
}

// Sweep expires incomplete aggregations older than the TTL. Each expired
// proposal gets a dead-letter audit record naming the domains that did and
// did not report; late reports for it are rejected from then on.
func (c *Coordinator) Sweep(ctx context.Context) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-c.config.AggregationTTL)
	var sweepErrs []error
	for proposalId, tally := range c.tallies {
		if tally.Finalized || !tally.FirstReportAt.Before(cutoff) {
			continue
		}
		c.expired[proposalId] = true
		delete(c.tallies, proposalId)
		if err := c.storeExpired(proposalId); err != nil {
			sweepErrs = append(sweepErrs, err)
			continue
		}
		if err := c.deleteTally(proposalId); err != nil {
			sweepErrs = append(sweepErrs, err)
			continue
		}
		if c.db != nil {
			err := c.db.AddDeadLetter(&models.DeadLetter{
				ProposalId:      proposalId,
				ReportedDomains: domainList(tally.Callbacks),
				ExpectedDomains: domainSetList(c.expected),
			})
			if err != nil {
				sweepErrs = append(sweepErrs, err)
				continue
			}
		}
		c.logger.Warn(
			"aggregation expired",
			"proposal_id", proposalId,
			"reported", len(tally.Callbacks),
			"expected", len(c.expected),
		)
		if c.metrics != nil {
			c.metrics.expirations.Inc()
		}
		c.emit(ProposalExpiredEventType, ProposalExpiredEvent{
			ProposalId: proposalId,
			Reported:   len(tally.Callbacks),
			Expected:   len(c.expected),
		})
	}
	c.updatePendingMetric()
	return errors.Join(sweepErrs...)
}

func domainList(callbacks map[relay.DomainID]token.Address) string {
	domains := make([]uint64, 0, len(callbacks))
	for domain := range callbacks {
		domains = append(domains, uint64(domain))
	}
	return formatDomains(domains)
}

func domainSetList(set map[relay.DomainID]bool) string {
	domains := make([]uint64, 0, len(set))
	for domain := range set {
		domains = append(domains, uint64(domain))
	}
	return formatDomains(domains)
}

func formatDomains(domains []uint64) string {
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })
	parts := make([]string, 0, len(domains))
	for _, domain := range domains {
		parts = append(parts, strconv.FormatUint(domain, 10))
	}
	return strings.Join(parts, ",")
}

func (c *Coordinator) updatePendingMetric() {
	if c.metrics == nil {
		return
	}
	var pending int
	for _, tally := range c.tallies {
		if !tally.Finalized {
			pending++
		}
	}
	c.metrics.pendingTallies.Set(float64(pending))
}

func (c *Coordinator) emit(eventType event.EventType, data any) {
	if c.eventBus != nil {
		c.eventBus.Publish(eventType, event.NewEvent(eventType, data))
	}
}
