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

package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type coordinatorMetrics struct {
	reportsReceived prometheus.Counter
	finalized       prometheus.Counter
	expirations     prometheus.Counter
	pendingTallies  prometheus.Gauge
}

func (c *Coordinator) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	c.metrics = &coordinatorMetrics{}
	c.metrics.reportsReceived = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_coordinator_reports_received_total",
			Help: "total domain tally reports accepted",
		},
	)
	c.metrics.finalized = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_coordinator_proposals_finalized_total",
			Help: "total proposals finalized",
		},
	)
	c.metrics.expirations = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_coordinator_aggregations_expired_total",
			Help: "total incomplete aggregations expired to dead letters",
		},
	)
	c.metrics.pendingTallies = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: "zenith_coordinator_pending_tallies",
			Help: "current incomplete aggregations",
		},
	)
}
