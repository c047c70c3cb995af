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

package upkeep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTickSkipsUnready(t *testing.T) {
	var performed atomic.Int64
	task := NewUpkeep(
		"test",
		func() bool { return false },
		func(context.Context) error {
			performed.Add(1)
			return nil
		},
	)
	runner := NewRunner(RunnerConfig{}, task)
	runner.Tick(context.Background())
	assert.Equal(t, int64(0), performed.Load())
}

func TestTickPerformsReady(t *testing.T) {
	var performed atomic.Int64
	ready := NewUpkeep(
		"ready",
		func() bool { return true },
		func(context.Context) error {
			performed.Add(1)
			return nil
		},
	)
	failing := NewUpkeep(
		"failing",
		func() bool { return true },
		func(context.Context) error { return errors.New("boom") },
	)
	runner := NewRunner(RunnerConfig{}, ready, failing)
	runner.Tick(context.Background())
	runner.Tick(context.Background())
	// A failing task does not block the others
	assert.Equal(t, int64(2), performed.Load())
}

func TestRunnerLoop(t *testing.T) {
	var performed atomic.Int64
	task := NewUpkeep(
		"test",
		func() bool { return true },
		func(context.Context) error {
			performed.Add(1)
			return nil
		},
	)
	runner := NewRunner(RunnerConfig{Interval: 5 * time.Millisecond}, task)
	runner.Start(context.Background())
	require.Eventually(
		t,
		func() bool { return performed.Load() >= 2 },
		time.Second,
		time.Millisecond,
	)
	runner.Stop()
	// Stop is idempotent
	runner.Stop()
}
