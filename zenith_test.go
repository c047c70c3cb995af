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

package zenith

import (
	"testing"
	"time"

	"github.com/zenith-chromion/zenith/relay"
	"github.com/zenith-chromion/zenith/token"
	"github.com/zenith-chromion/zenith/treasury"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	feeAsset = token.Asset("ZLINK")

	domainA = relay.DomainID(1)
	domainB = relay.DomainID(2)
	domainC = relay.DomainID(3)
)

func newTestNetwork(t *testing.T) *relay.Network {
	t.Helper()
	network := relay.NewNetwork(relay.NetworkConfig{
		FeeAsset:   feeAsset,
		BaseFee:    10,
		FeePerByte: 1,
	})
	t.Cleanup(network.Stop)
	return network
}

func newTestDomain(
	t *testing.T,
	network *relay.Network,
	id relay.DomainID,
	opts ...ConfigOptionFunc,
) *Domain {
	t.Helper()
	opts = append([]ConfigOptionFunc{
		WithRelayNetwork(network),
		WithDomain(id),
		WithCoordinatorDomain(domainA),
		WithVotingWindow(100 * time.Millisecond),
		WithUpkeepInterval(10 * time.Millisecond),
	}, opts...)
	domain, err := New(NewConfig(opts...))
	require.NoError(t, err)
	require.NoError(t, domain.Start())
	t.Cleanup(func() {
		require.NoError(t, domain.Stop())
	})
	// Fund the governance and coordinator accounts for relay fees
	require.NoError(
		t,
		domain.Ledger().Mint(feeAsset, GovernanceAccount, 1_000_000),
	)
	require.NoError(
		t,
		domain.Ledger().Mint(feeAsset, CoordinatorAccount, 1_000_000),
	)
	return domain
}

func addStakeholder(
	t *testing.T,
	domain *Domain,
	account token.Address,
	amount uint64,
) {
	t.Helper()
	require.NoError(t, domain.Ledger().Mint("ZNT", account, amount))
	require.NoError(t, domain.Treasury().AddLiquidity(account, amount))
}

// Full protocol round trip: proposals on three domains, voting, settlement
// to the coordinator, aggregation, and decision fan-out granting a fund
// manager role everywhere.
func TestCrossDomainDecision(t *testing.T) {
	network := newTestNetwork(t)
	coordDomain := newTestDomain(
		t,
		network,
		domainA,
		WithExpectedDomains(domainA, domainB, domainC),
	)
	domains := []*Domain{
		coordDomain,
		newTestDomain(t, network, domainB),
		newTestDomain(t, network, domainC),
	}
	subject := token.Address("manager1")
	// Domain A has three stakeholders voting 2-for/1-against; B and C each
	// have one stakeholder voting for
	addStakeholder(t, domains[0], "alice", 500)
	addStakeholder(t, domains[0], "bob", 300)
	addStakeholder(t, domains[0], "carol", 200)
	addStakeholder(t, domains[1], "dave", 100)
	addStakeholder(t, domains[2], "erin", 100)
	for _, domain := range domains {
		id, err := domain.Treasury().SubmitProposal(
			treasury.KindAddManager,
			subject,
			0,
			treasury.TierT1,
		)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), id)
	}
	require.NoError(t, domains[0].Governance().Vote("alice", 0, true))
	require.NoError(t, domains[0].Governance().Vote("bob", 0, true))
	require.NoError(t, domains[0].Governance().Vote("carol", 0, false))
	require.NoError(t, domains[1].Governance().Vote("dave", 0, true))
	require.NoError(t, domains[2].Governance().Vote("erin", 0, true))
	// After the voting window closes, upkeep settles each domain's tally to
	// the coordinator, which finalizes and fans the decision back out
	require.Eventually(t, func() bool {
		for _, domain := range domains {
			if _, ok := domain.Treasury().Manager(subject); !ok {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
	for _, domain := range domains {
		mgr, ok := domain.Treasury().Manager(subject)
		require.True(t, ok)
		assert.Equal(t, treasury.TierT1, mgr.Tier)
	}
	tally, ok := coordDomain.Coordinator().Tally(0)
	require.True(t, ok)
	assert.True(t, tally.Finalized)
	assert.True(t, tally.Approved)
	assert.Equal(t, uint64(4), tally.TotalFor)
	assert.Equal(t, uint64(1), tally.TotalAgainst)
	// Each settled proposal is marked executed locally
	for _, domain := range domains {
		prop, ok := domain.Governance().Proposal(0)
		require.True(t, ok)
		assert.True(t, prop.Executed)
		assert.True(t, prop.Decided)
	}
}

// A rejected proposal still settles and decides, but never touches the
// treasury.
func TestCrossDomainRejection(t *testing.T) {
	network := newTestNetwork(t)
	coordDomain := newTestDomain(
		t,
		network,
		domainA,
		WithExpectedDomains(domainA, domainB),
	)
	other := newTestDomain(t, network, domainB)
	subject := token.Address("manager1")
	addStakeholder(t, coordDomain, "alice", 100)
	addStakeholder(t, other, "bob", 100)
	for _, domain := range []*Domain{coordDomain, other} {
		_, err := domain.Treasury().SubmitProposal(
			treasury.KindAddManager,
			subject,
			0,
			treasury.TierT1,
		)
		require.NoError(t, err)
	}
	require.NoError(t, coordDomain.Governance().Vote("alice", 0, false))
	require.NoError(t, other.Governance().Vote("bob", 0, false))
	require.Eventually(t, func() bool {
		prop, ok := other.Governance().Proposal(0)
		return ok && prop.Decided
	}, 5*time.Second, 10*time.Millisecond)
	tally, _ := coordDomain.Coordinator().Tally(0)
	assert.False(t, tally.Approved)
	_, ok := coordDomain.Treasury().Manager(subject)
	assert.False(t, ok)
	_, ok = other.Treasury().Manager(subject)
	assert.False(t, ok)
}

func TestDomainConfigValidation(t *testing.T) {
	network := newTestNetwork(t)
	_, err := New(NewConfig(WithRelayNetwork(network)))
	require.Error(t, err)
	_, err = New(NewConfig(WithDomain(domainA), WithCoordinatorDomain(domainA)))
	require.Error(t, err)
	_, err = New(NewConfig(WithRelayNetwork(network), WithDomain(domainA)))
	require.Error(t, err)
}

// Token transfers ride the same relay as governance traffic
func TestCrossDomainTokenTransfer(t *testing.T) {
	network := newTestNetwork(t)
	source := newTestDomain(
		t,
		network,
		domainA,
		WithExpectedDomains(domainA, domainB),
	)
	dest := newTestDomain(t, network, domainB)
	require.NoError(t, source.Ledger().Mint("ZNT", "alice", 500))
	require.NoError(t, source.Ledger().Mint(feeAsset, "alice", 100))
	_, err := source.Endpoint().SendWithTokens(
		t.Context(),
		domainB,
		"ZNT",
		"bob",
		200,
		"alice",
	)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return dest.Ledger().Balance("ZNT", "bob") == 200
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(300), source.Ledger().Balance("ZNT", "alice"))
}
