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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "zenith.config"

const DefaultShutdownTimeout = "30s"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	DatabasePath    string `yaml:"databasePath"                                          split_words:"true"`
	BindAddr        string `yaml:"bindAddr"                                              split_words:"true"`
	FeeAsset        string `yaml:"feeAsset"          envconfig:"ZENITH_FEE_ASSET"`
	UnderlyingAsset string `yaml:"underlyingAsset"   envconfig:"ZENITH_UNDERLYING_ASSET"`
	ShareAsset      string `yaml:"shareAsset"        envconfig:"ZENITH_SHARE_ASSET"`
	VotingWindow    string `yaml:"votingWindow"                                          split_words:"true"`
	AggregationTTL  string `yaml:"aggregationTtl"    envconfig:"ZENITH_AGGREGATION_TTL"`
	UpkeepInterval  string `yaml:"upkeepInterval"                                        split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout"                                       split_words:"true"`
	// Domains hosted by this process; the whole relay network is in-process
	Domains           []uint64 `yaml:"domains"`
	CoordinatorDomain uint64   `yaml:"coordinatorDomain" envconfig:"ZENITH_COORDINATOR_DOMAIN"`
	BaseFee           uint64   `yaml:"baseFee"                                               split_words:"true"`
	FeePerByte        uint64   `yaml:"feePerByte"        envconfig:"ZENITH_FEE_PER_BYTE"`
	// SystemFeeFunding is minted to each domain's governance account (and
	// the coordinator account) at startup so settlement sends can pay fees
	SystemFeeFunding uint64 `yaml:"systemFeeFunding"  envconfig:"ZENITH_SYSTEM_FEE_FUNDING"`
	MetricsPort      uint   `yaml:"metricsPort"                                           split_words:"true"`
	Tracing          bool   `yaml:"tracing"`
	TracingStdout    bool   `yaml:"tracingStdout"     envconfig:"ZENITH_TRACING_STDOUT"`
}

var globalConfig = &Config{
	DatabasePath:      "",
	BindAddr:          "0.0.0.0",
	MetricsPort:       12798,
	FeeAsset:          "ZLINK",
	UnderlyingAsset:   "ZNT",
	ShareAsset:        "ZNT-LP",
	BaseFee:           10,
	FeePerByte:        1,
	SystemFeeFunding:  1_000_000_000,
	Domains:           []uint64{1, 2, 3},
	CoordinatorDomain: 1,
	VotingWindow:      "24h",
	AggregationTTL:    "72h",
	UpkeepInterval:    "10s",
	ShutdownTimeout:   DefaultShutdownTimeout,
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.zenith/zenith.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".zenith", "zenith.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/zenith/zenith.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/zenith/zenith.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	err := envconfig.Process("zenith", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}
	if err := globalConfig.validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func (c *Config) validate() error {
	if len(c.Domains) == 0 {
		return errors.New("no domains configured")
	}
	for _, domain := range c.Domains {
		if domain == 0 {
			return errors.New("domain id 0 is not valid")
		}
	}
	if c.CoordinatorDomain == 0 {
		return errors.New("no coordinator domain configured")
	}
	if !slices.Contains(c.Domains, c.CoordinatorDomain) {
		return fmt.Errorf(
			"coordinator domain %d is not in the domain set",
			c.CoordinatorDomain,
		)
	}
	return nil
}

func GetConfig() *Config {
	return globalConfig
}
