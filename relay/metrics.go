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

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type networkMetrics struct {
	messagesSent      prometheus.Counter
	messagesDelivered prometheus.Counter
	deliveryFailures  prometheus.Counter
	feesCharged       prometheus.Counter
}

func (n *Network) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	n.metrics = &networkMetrics{}
	n.metrics.messagesSent = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_relay_messages_sent_total",
			Help: "total messages accepted for delivery",
		},
	)
	n.metrics.messagesDelivered = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_relay_messages_delivered_total",
			Help: "total messages delivered to a receiver",
		},
	)
	n.metrics.deliveryFailures = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_relay_delivery_failures_total",
			Help: "total messages dropped or rejected by the receiver",
		},
	)
	n.metrics.feesCharged = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "zenith_relay_fees_charged_total",
			Help: "total relay fees charged in fee-asset units",
		},
	)
}
