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

// Package upkeep runs periodic poll-then-act maintenance tasks. A task
// exposes a pure readiness predicate separate from its action so the runner
// can poll cheaply and act only when needed.
package upkeep

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultInterval = 10 * time.Second

// Upkeep is a periodic maintenance task. CheckReady must be a side-effect
// free query; Perform runs only when CheckReady reports true.
type Upkeep interface {
	Name() string
	CheckReady() bool
	Perform(ctx context.Context) error
}

type funcUpkeep struct {
	name    string
	check   func() bool
	perform func(ctx context.Context) error
}

func (f *funcUpkeep) Name() string                      { return f.name }
func (f *funcUpkeep) CheckReady() bool                  { return f.check() }
func (f *funcUpkeep) Perform(ctx context.Context) error { return f.perform(ctx) }

// NewUpkeep adapts a check/perform function pair into an Upkeep
func NewUpkeep(
	name string,
	check func() bool,
	perform func(ctx context.Context) error,
) Upkeep {
	return &funcUpkeep{name: name, check: check, perform: perform}
}

type RunnerConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Interval     time.Duration
}

// Runner polls a set of upkeep tasks on a fixed interval
type Runner struct {
	config  RunnerConfig
	logger  *slog.Logger
	metrics *runnerMetrics
	upkeeps []Upkeep
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

func NewRunner(config RunnerConfig, upkeeps ...Upkeep) *Runner {
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		config.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if config.Interval == 0 {
		config.Interval = defaultInterval
	}
	r := &Runner{
		config:  config,
		logger:  config.Logger.With("component", "upkeep"),
		upkeeps: upkeeps,
		stopCh:  make(chan struct{}),
	}
	if config.PromRegistry != nil {
		r.initMetrics(config.PromRegistry)
	}
	return r
}

// Start launches the polling loop. Safe to call once.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop halts the polling loop and waits for an in-flight tick to finish
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	r.started = false
	close(r.stopCh)
	r.wg.Wait()
}

// Tick polls every task once, performing those that report ready. Exposed
// for tests and manual triggering.
func (r *Runner) Tick(ctx context.Context) {
	for _, task := range r.upkeeps {
		if !task.CheckReady() {
			continue
		}
		if err := task.Perform(ctx); err != nil {
			r.logger.Warn(
				"upkeep task failed",
				"task", task.Name(),
				"error", err,
			)
			if r.metrics != nil {
				r.metrics.failures.WithLabelValues(task.Name()).Inc()
			}
			continue
		}
		r.logger.Debug("upkeep task performed", "task", task.Name())
		if r.metrics != nil {
			r.metrics.performed.WithLabelValues(task.Name()).Inc()
		}
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

type runnerMetrics struct {
	performed *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

func (r *Runner) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	r.metrics = &runnerMetrics{
		performed: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenith_upkeep_performed_total",
				Help: "total upkeep task executions",
			},
			[]string{"task"},
		),
		failures: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenith_upkeep_failures_total",
				Help: "total upkeep task failures",
			},
			[]string{"task"},
		),
	}
}
