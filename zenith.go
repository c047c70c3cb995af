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

// Package zenith wires one execution domain's components together: token
// ledger, treasury, governance, relay endpoint, and optionally the
// aggregation coordinator. Domains communicate only through the relay
// network.
package zenith

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zenith-chromion/zenith/coordinator"
	"github.com/zenith-chromion/zenith/database"
	"github.com/zenith-chromion/zenith/event"
	"github.com/zenith-chromion/zenith/governance"
	"github.com/zenith-chromion/zenith/relay"
	"github.com/zenith-chromion/zenith/token"
	"github.com/zenith-chromion/zenith/treasury"
	"github.com/zenith-chromion/zenith/upkeep"
)

// Well-known account identities on each domain's ledger
const (
	TreasuryAccount    = token.Address("treasury")
	PoolAccount        = token.Address("treasury:pool")
	GovernanceAccount  = token.Address("governance")
	CoordinatorAccount = token.Address("coordinator")
)

type Domain struct {
	config        Config
	db            *database.Database
	eventBus      *event.EventBus
	ledger        *token.Ledger
	treasury      *treasury.Treasury
	governance    *governance.Governance
	coordinator   *coordinator.Coordinator
	endpoint      *relay.Endpoint
	upkeepRunner  *upkeep.Runner
	shutdownFuncs []func(context.Context) error
	done          chan struct{}
	started       bool
	shutdownOnce  sync.Once
	mu            sync.Mutex
}

func New(cfg Config) (*Domain, error) {
	d := &Domain{
		config: cfg,
		done:   make(chan struct{}),
	}
	if err := d.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return d, nil
}

// Start builds and connects the domain's components and begins upkeep
// polling. It does not block.
func (d *Domain) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}
	// Configure tracing
	if d.config.tracing {
		if err := d.setupTracing(); err != nil {
			return err
		}
	}
	d.eventBus = event.NewEventBus(d.config.promRegistry, d.config.logger)
	d.ledger = token.NewLedger()
	db, err := database.New(d.config.logger, d.config.dataDir)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	d.db = db
	// Treasury owns the liquidity pool; governance is the only authority on
	// its decision-gated mutators
	d.treasury, err = treasury.NewTreasury(treasury.TreasuryConfig{
		Logger:          d.config.logger,
		EventBus:        d.eventBus,
		PromRegistry:    d.config.promRegistry,
		Database:        d.db,
		Ledger:          d.ledger,
		UnderlyingAsset: d.config.underlyingAsset,
		ShareAsset:      d.config.shareAsset,
		Address:         TreasuryAccount,
		Custody:         PoolAccount,
		GovAuthority:    GovernanceAccount,
	})
	if err != nil {
		return err
	}
	d.governance, err = governance.NewGovernance(governance.GovernanceConfig{
		Logger:            d.config.logger,
		EventBus:          d.eventBus,
		PromRegistry:      d.config.promRegistry,
		Database:          d.db,
		Eligibility:       d.treasury,
		Executor:          d.treasury,
		ProposalAuthority: TreasuryAccount,
		Callback:          GovernanceAccount,
		ExecAuthority:     GovernanceAccount,
		Domain:            d.config.domain,
		CoordinatorDomain: d.config.coordinatorDomain,
		VotingWindow:      d.config.votingWindow,
	})
	if err != nil {
		return err
	}
	// Treasury and governance hold each other's capability handles; the pair
	// is resolved here rather than at construction to avoid a cycle
	d.treasury.SetProposer(d.governance)
	d.endpoint, err = d.config.relayNetwork.Register(
		d.config.domain,
		d.ledger,
	)
	if err != nil {
		return fmt.Errorf("failed to register relay endpoint: %w", err)
	}
	d.endpoint.SetReceiver(d)
	d.governance.SetSender(d.endpoint)
	upkeeps := []upkeep.Upkeep{
		upkeep.NewUpkeep(
			"proposal-settlement",
			d.governance.CheckReady,
			d.governance.Settle,
		),
	}
	// Only the coordinator domain aggregates tallies
	if len(d.config.expectedDomains) > 0 {
		d.coordinator, err = coordinator.NewCoordinator(
			coordinator.CoordinatorConfig{
				Logger:          d.config.logger,
				EventBus:        d.eventBus,
				PromRegistry:    d.config.promRegistry,
				Database:        d.db,
				ExpectedDomains: d.config.expectedDomains,
				Account:         CoordinatorAccount,
				AggregationTTL:  d.config.aggregationTTL,
			},
		)
		if err != nil {
			return err
		}
		d.coordinator.SetSender(d.endpoint)
		upkeeps = append(upkeeps, upkeep.NewUpkeep(
			"aggregation-sweep",
			d.coordinator.SweepReady,
			d.coordinator.Sweep,
		))
	}
	d.upkeepRunner = upkeep.NewRunner(
		upkeep.RunnerConfig{
			Logger:       d.config.logger,
			PromRegistry: d.config.promRegistry,
			Interval:     d.config.upkeepInterval,
		},
		upkeeps...,
	)
	d.upkeepRunner.Start(context.Background())
	d.started = true
	return nil
}

// Run starts the domain and blocks until Stop is called
func (d *Domain) Run() error {
	if err := d.Start(); err != nil {
		return err
	}
	<-d.done
	return nil
}

func (d *Domain) Stop() error {
	var err error
	d.shutdownOnce.Do(func() {
		err = d.shutdown()
	})
	return err
}

func (d *Domain) shutdown() error {
	shutdownTimeout := 30 * time.Second
	if d.config.shutdownTimeout > 0 {
		shutdownTimeout = d.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var err error
	if d.upkeepRunner != nil {
		d.upkeepRunner.Stop()
	}
	if d.eventBus != nil {
		d.eventBus.Stop()
	}
	if d.db != nil {
		if closeErr := d.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}
	for _, fn := range d.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	d.shutdownFuncs = nil
	close(d.done)
	return err
}

// HandleMessage dispatches an inbound relay payload to the component that
// consumes it. Token-only messages carry no payload and need no dispatch.
func (d *Domain) HandleMessage(ctx context.Context, msg relay.Message) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	decoded, err := relay.DecodePayload(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to decode inbound payload: %w", err)
	}
	switch payload := decoded.(type) {
	case *relay.TallyReport:
		if d.coordinator == nil {
			return fmt.Errorf(
				"domain %d does not host the aggregation coordinator",
				d.config.domain,
			)
		}
		return d.coordinator.OnDomainReport(ctx, payload)
	case *relay.Decision:
		return d.governance.OnDecision(payload.ProposalId, payload.Approved)
	default:
		return fmt.Errorf("unhandled payload type %T", decoded)
	}
}

// Ledger returns the domain's token ledger
func (d *Domain) Ledger() *token.Ledger {
	return d.ledger
}

// Treasury returns the domain's treasury manager
func (d *Domain) Treasury() *treasury.Treasury {
	return d.treasury
}

// Governance returns the domain's governance instance
func (d *Domain) Governance() *governance.Governance {
	return d.governance
}

// Coordinator returns the aggregation coordinator, or nil when this domain
// does not host it
func (d *Domain) Coordinator() *coordinator.Coordinator {
	return d.coordinator
}

// EventBus returns the domain's event bus
func (d *Domain) EventBus() *event.EventBus {
	return d.eventBus
}

// Endpoint returns the domain's relay endpoint
func (d *Domain) Endpoint() *relay.Endpoint {
	return d.endpoint
}

// UpkeepTick runs one upkeep poll immediately instead of waiting for the
// next interval
func (d *Domain) UpkeepTick(ctx context.Context) {
	d.upkeepRunner.Tick(ctx)
}
