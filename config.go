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
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/zenith-chromion/zenith/relay"
	"github.com/zenith-chromion/zenith/token"

	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	promRegistry    prometheus.Registerer
	logger          *slog.Logger
	relayNetwork    *relay.Network
	dataDir         string
	underlyingAsset token.Asset
	shareAsset      token.Asset
	domain          relay.DomainID
	// coordinatorDomain is where closed tallies are settled to. It may be
	// this domain itself when expectedDomains is set.
	coordinatorDomain relay.DomainID
	// expectedDomains is non-empty only on the domain hosting the
	// aggregation coordinator
	expectedDomains []relay.DomainID
	votingWindow    time.Duration
	aggregationTTL  time.Duration
	upkeepInterval  time.Duration
	tracing         bool
	tracingStdout   bool
	shutdownTimeout time.Duration
}

func (d *Domain) configValidate() error {
	if d.config.domain == 0 {
		return errors.New("no domain id configured")
	}
	if d.config.relayNetwork == nil {
		return errors.New("no relay network configured")
	}
	if d.config.coordinatorDomain == 0 {
		return errors.New("no coordinator domain configured")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the Domain config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new domain config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		underlyingAsset: "ZNT",
		shareAsset:      "ZNT-LP",
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithRelayNetwork specifies the relay network this domain attaches to
func WithRelayNetwork(network *relay.Network) ConfigOptionFunc {
	return func(c *Config) {
		c.relayNetwork = network
	}
}

// WithDomain specifies this domain's id on the relay network
func WithDomain(domain relay.DomainID) ConfigOptionFunc {
	return func(c *Config) {
		c.domain = domain
	}
}

// WithCoordinatorDomain specifies the domain hosting the aggregation coordinator
func WithCoordinatorDomain(domain relay.DomainID) ConfigOptionFunc {
	return func(c *Config) {
		c.coordinatorDomain = domain
	}
}

// WithExpectedDomains makes this domain host the aggregation coordinator and
// specifies the fixed set of domains that must report before a proposal
// finalizes
func WithExpectedDomains(domains ...relay.DomainID) ConfigOptionFunc {
	return func(c *Config) {
		c.expectedDomains = append(c.expectedDomains, domains...)
	}
}

// WithUnderlyingAsset specifies the treasury pool's underlying asset. This defaults to ZNT
func WithUnderlyingAsset(asset token.Asset) ConfigOptionFunc {
	return func(c *Config) {
		c.underlyingAsset = asset
	}
}

// WithShareAsset specifies the liquidity share asset. This defaults to ZNT-LP
func WithShareAsset(asset token.Asset) ConfigOptionFunc {
	return func(c *Config) {
		c.shareAsset = asset
	}
}

// WithVotingWindow specifies the proposal voting window. This defaults to 24 hours
func WithVotingWindow(window time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.votingWindow = window
	}
}

// WithAggregationTTL specifies how long the coordinator waits for missing
// domain reports before expiring an aggregation. This defaults to 72 hours
func WithAggregationTTL(ttl time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.aggregationTTL = ttl
	}
}

// WithUpkeepInterval specifies the polling interval for settlement and sweep
// upkeep tasks. This defaults to 10 seconds
func WithUpkeepInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.upkeepInterval = interval
	}
}

// WithTracing enables OpenTelemetry tracing export
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout instead of OTLP
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. This defaults to 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
