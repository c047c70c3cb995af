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

// Package node assembles the full settlement network from configuration:
// one relay network plus a zenith domain per configured id, with the
// coordinator hosted on the configured domain.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/zenith-chromion/zenith"
	"github.com/zenith-chromion/zenith/internal/config"
	"github.com/zenith-chromion/zenith/relay"
	"github.com/zenith-chromion/zenith/token"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	votingWindow, err := parseDuration("voting window", cfg.VotingWindow)
	if err != nil {
		return err
	}
	aggregationTTL, err := parseDuration(
		"aggregation TTL",
		cfg.AggregationTTL,
	)
	if err != nil {
		return err
	}
	upkeepInterval, err := parseDuration(
		"upkeep interval",
		cfg.UpkeepInterval,
	)
	if err != nil {
		return err
	}
	shutdownTimeout := 30 * time.Second
	if cfg.ShutdownTimeout != "" {
		shutdownTimeout, err = parseDuration(
			"shutdown timeout",
			cfg.ShutdownTimeout,
		)
		if err != nil {
			return err
		}
	}
	network := relay.NewNetwork(relay.NetworkConfig{
		Logger:       logger,
		PromRegistry: prometheus.DefaultRegisterer,
		FeeAsset:     token.Asset(cfg.FeeAsset),
		BaseFee:      cfg.BaseFee,
		FeePerByte:   cfg.FeePerByte,
	})
	defer network.Stop()
	expectedDomains := make([]relay.DomainID, 0, len(cfg.Domains))
	for _, id := range cfg.Domains {
		expectedDomains = append(expectedDomains, relay.DomainID(id))
	}
	domains := make([]*zenith.Domain, 0, len(cfg.Domains))
	for _, id := range cfg.Domains {
		dataDir := ""
		if cfg.DatabasePath != "" {
			dataDir = filepath.Join(
				cfg.DatabasePath,
				fmt.Sprintf("domain-%d", id),
			)
		}
		opts := []zenith.ConfigOptionFunc{
			zenith.WithLogger(logger.With("domain", id)),
			zenith.WithPrometheusRegistry(prometheus.DefaultRegisterer),
			zenith.WithRelayNetwork(network),
			zenith.WithDomain(relay.DomainID(id)),
			zenith.WithCoordinatorDomain(relay.DomainID(cfg.CoordinatorDomain)),
			zenith.WithDatabasePath(dataDir),
			zenith.WithUnderlyingAsset(token.Asset(cfg.UnderlyingAsset)),
			zenith.WithShareAsset(token.Asset(cfg.ShareAsset)),
			zenith.WithVotingWindow(votingWindow),
			zenith.WithAggregationTTL(aggregationTTL),
			zenith.WithUpkeepInterval(upkeepInterval),
			zenith.WithTracing(cfg.Tracing),
			zenith.WithTracingStdout(cfg.TracingStdout),
			zenith.WithShutdownTimeout(shutdownTimeout),
		}
		if id == cfg.CoordinatorDomain {
			opts = append(opts, zenith.WithExpectedDomains(expectedDomains...))
		}
		domain, err := zenith.New(zenith.NewConfig(opts...))
		if err != nil {
			return fmt.Errorf("failed to create domain %d: %w", id, err)
		}
		domains = append(domains, domain)
	}
	stopDomains := func() error {
		var stopErr error
		for _, domain := range domains {
			if err := domain.Stop(); err != nil {
				stopErr = errors.Join(stopErr, err)
			}
		}
		return stopErr
	}
	for _, domain := range domains {
		if err := domain.Start(); err != nil {
			stopDomains() //nolint:errcheck
			return err
		}
	}
	if err := fundSystemAccounts(cfg, domains); err != nil {
		stopDomains() //nolint:errcheck
		return err
	}
	// Metrics listener
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logger.Info(
		"serving prometheus metrics on "+metricsServer.Addr,
		"component", "node",
	)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", "node",
			)
			os.Exit(1)
		}
	}()
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()
	<-signalCtx.Done()
	logger.Info("signal received, initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		shutdownTimeout,
	)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
	if err := stopDomains(); err != nil {
		logger.Error("shutdown errors occurred", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// fundSystemAccounts mints fee-asset balances for the accounts that send
// relay messages on behalf of the protocol
func fundSystemAccounts(cfg *config.Config, domains []*zenith.Domain) error {
	feeAsset := token.Asset(cfg.FeeAsset)
	for _, domain := range domains {
		accounts := []token.Address{zenith.GovernanceAccount}
		if domain.Coordinator() != nil {
			accounts = append(accounts, zenith.CoordinatorAccount)
		}
		for _, account := range accounts {
			// Only top up fresh ledgers; restarted domains keep balances in
			// their persisted treasury state but ledgers are rebuilt empty
			if domain.Ledger().Balance(feeAsset, account) > 0 {
				continue
			}
			err := domain.Ledger().Mint(feeAsset, account, cfg.SystemFeeFunding)
			if err != nil {
				return fmt.Errorf("failed to fund %s: %w", account, err)
			}
		}
	}
	return nil
}

func parseDuration(name string, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}
