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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type treasuryMetrics struct {
	totalLiquidity prometheus.Gauge
	totalShares    prometheus.Gauge
	managers       prometheus.Gauge
	withdrawals    prometheus.Counter
	royaltiesPaid  prometheus.Counter
}

func (t *Treasury) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	t.metrics = &treasuryMetrics{}
	t.metrics.totalLiquidity = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: "zenith_treasury_total_liquidity",
			Help: "current pool liquidity in underlying asset units",
		},
	)
	t.metrics.totalShares = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: "zenith_treasury_total_shares",
			Help: "current outstanding share supply",
		},
	)
	t.metrics.managers = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: "zenith_treasury_fund_managers",
			Help: "current number of fund managers",
		},
	)
	t.metrics.withdrawals = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_treasury_withdrawals_total",
			Help: "total fund manager withdrawals",
		},
	)
	t.metrics.royaltiesPaid = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_treasury_royalties_paid_total",
			Help: "total royalties paid in underlying asset units",
		},
	)
}

func (t *Treasury) updatePoolMetrics() {
	if t.metrics == nil {
		return
	}
	t.metrics.totalLiquidity.Set(
		float64(t.ledger.Balance(t.config.UnderlyingAsset, t.config.Custody)),
	)
	t.metrics.totalShares.Set(
		float64(t.ledger.TotalSupply(t.config.ShareAsset)),
	)
}
