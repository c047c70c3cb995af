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

package governance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type governanceMetrics struct {
	proposalsCreated prometheus.Counter
	votesCast        prometheus.Counter
	settlements      prometheus.Counter
	decisionsApplied prometheus.Counter
}

func (g *Governance) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	g.metrics = &governanceMetrics{}
	g.metrics.proposalsCreated = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_governance_proposals_created_total",
			Help: "total proposals created on this domain",
		},
	)
	g.metrics.votesCast = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_governance_votes_cast_total",
			Help: "total votes cast on this domain",
		},
	)
	g.metrics.settlements = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_governance_settlements_total",
			Help: "total proposal tallies settled to the coordinator",
		},
	)
	g.metrics.decisionsApplied = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_governance_decisions_applied_total",
			Help: "total aggregated decisions applied on this domain",
		},
	)
}
