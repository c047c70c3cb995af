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

package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testEventType = EventType("test.event")

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEventBusSubscribePublish(t *testing.T) {
	eb := NewEventBus(nil, nil)
	defer eb.Stop()
	_, ch := eb.Subscribe(testEventType)
	eb.Publish(testEventType, NewEvent(testEventType, "hello"))
	select {
	case evt := <-ch:
		assert.Equal(t, testEventType, evt.Type)
		assert.Equal(t, "hello", evt.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventBusSubscribeFunc(t *testing.T) {
	eb := NewEventBus(nil, nil)
	defer eb.Stop()
	var wg sync.WaitGroup
	wg.Add(1)
	var got atomic.Value
	eb.SubscribeFunc(testEventType, func(evt Event) {
		got.Store(evt.Data)
		wg.Done()
	})
	eb.Publish(testEventType, NewEvent(testEventType, 42))
	wg.Wait()
	assert.Equal(t, 42, got.Load())
}

func TestEventBusUnsubscribe(t *testing.T) {
	eb := NewEventBus(nil, nil)
	defer eb.Stop()
	subId, ch := eb.Subscribe(testEventType)
	eb.Unsubscribe(testEventType, subId)
	// Channel is closed after unsubscribe
	_, ok := <-ch
	assert.False(t, ok)
	// Publishing with no subscribers is a no-op
	eb.Publish(testEventType, NewEvent(testEventType, "ignored"))
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	eb := NewEventBus(nil, nil)
	defer eb.Stop()
	_, ch1 := eb.Subscribe(testEventType)
	_, ch2 := eb.Subscribe(testEventType)
	eb.Publish(testEventType, NewEvent(testEventType, "fanout"))
	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			assert.Equal(t, "fanout", evt.Data)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestEventBusTypeIsolation(t *testing.T) {
	eb := NewEventBus(nil, nil)
	defer eb.Stop()
	_, ch := eb.Subscribe(EventType("other.event"))
	eb.Publish(testEventType, NewEvent(testEventType, "wrong type"))
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBusMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	eb := NewEventBus(registry, nil)
	defer eb.Stop()
	eb.Subscribe(testEventType)
	eb.Publish(testEventType, NewEvent(testEventType, nil))
	eb.Publish(testEventType, NewEvent(testEventType, nil))
	count := testutil.ToFloat64(
		eb.metrics.eventsTotal.WithLabelValues(string(testEventType)),
	)
	require.Equal(t, float64(2), count)
	subs := testutil.ToFloat64(
		eb.metrics.subscribers.WithLabelValues(string(testEventType)),
	)
	require.Equal(t, float64(1), subs)
}

func TestEventBusPublishUnsubscribeRace(t *testing.T) {
	eb := NewEventBus(nil, nil)
	defer eb.Stop()
	stopCh := make(chan struct{})
	var pubWg, subWg sync.WaitGroup
	// Publishers run flat out while subscribers churn; a publish racing an
	// unsubscribe must drop the event rather than send on a closed channel
	for range 4 {
		pubWg.Add(1)
		go func() {
			defer pubWg.Done()
			for {
				select {
				case <-stopCh:
					return
				default:
					eb.Publish(testEventType, NewEvent(testEventType, nil))
				}
			}
		}()
	}
	for range 4 {
		subWg.Add(1)
		go func() {
			defer subWg.Done()
			for range 500 {
				subId, ch := eb.Subscribe(testEventType)
				select {
				case <-ch:
				default:
				}
				eb.Unsubscribe(testEventType, subId)
			}
		}()
	}
	subWg.Wait()
	close(stopCh)
	pubWg.Wait()
}

func TestEventBusStopClosesChannels(t *testing.T) {
	eb := NewEventBus(nil, nil)
	_, ch := eb.Subscribe(testEventType)
	eb.Stop()
	_, ok := <-ch
	assert.False(t, ok)
}
