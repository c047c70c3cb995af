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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zenith-chromion/zenith/token"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	testFeeAsset = token.Asset("ZLINK")
	testAsset    = token.Asset("ZNT")
	testPayer    = token.Address("payer")
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// collectingReceiver records delivered messages
type collectingReceiver struct {
	mu       sync.Mutex
	messages []Message
}

func (r *collectingReceiver) HandleMessage(
	ctx context.Context,
	msg Message,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *collectingReceiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type testNetwork struct {
	network *Network
	ledgerA *token.Ledger
	ledgerB *token.Ledger
	epA     *Endpoint
	epB     *Endpoint
	recvB   *collectingReceiver
}

func newTestNetwork(t *testing.T) *testNetwork {
	t.Helper()
	net := NewNetwork(NetworkConfig{
		FeeAsset:   testFeeAsset,
		BaseFee:    10,
		FeePerByte: 1,
	})
	t.Cleanup(net.Stop)
	tn := &testNetwork{
		network: net,
		ledgerA: token.NewLedger(),
		ledgerB: token.NewLedger(),
		recvB:   &collectingReceiver{},
	}
	var err error
	tn.epA, err = net.Register(1, tn.ledgerA)
	require.NoError(t, err)
	tn.epB, err = net.Register(2, tn.ledgerB)
	require.NoError(t, err)
	tn.epB.SetReceiver(tn.recvB)
	require.NoError(t, tn.ledgerA.Mint(testFeeAsset, testPayer, 1000))
	return tn
}

func TestSendDelivers(t *testing.T) {
	tn := newTestNetwork(t)
	msgId, err := tn.epA.Send(
		context.Background(),
		2,
		[]byte("hello"),
		testPayer,
	)
	require.NoError(t, err)
	assert.NotZero(t, msgId)
	require.Eventually(t, func() bool {
		return tn.recvB.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
	msg := tn.recvB.messages[0]
	assert.Equal(t, DomainID(1), msg.Source)
	assert.Equal(t, DomainID(2), msg.Dest)
	assert.Equal(t, []byte("hello"), msg.Payload)
}

func TestSendChargesFee(t *testing.T) {
	tn := newTestNetwork(t)
	_, err := tn.epA.Send(context.Background(), 2, []byte("hello"), testPayer)
	require.NoError(t, err)
	// base 10 + 1/byte * 5
	assert.Equal(
		t,
		uint64(1000-15),
		tn.ledgerA.Balance(testFeeAsset, testPayer),
	)
	assert.Equal(
		t,
		uint64(15),
		tn.ledgerA.Balance(testFeeAsset, FeeCollectorAccount),
	)
}

func TestSendInsufficientFee(t *testing.T) {
	tn := newTestNetwork(t)
	payload := make([]byte, 2000)
	_, err := tn.epA.Send(context.Background(), 2, payload, testPayer)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientFeeBalance)
	// No fee was consumed
	assert.Equal(
		t,
		uint64(1000),
		tn.ledgerA.Balance(testFeeAsset, testPayer),
	)
}

func TestSendInvalidReceiver(t *testing.T) {
	tn := newTestNetwork(t)
	// Zero destination fails fast
	_, err := tn.epA.Send(context.Background(), 0, []byte("x"), testPayer)
	assert.ErrorIs(t, err, ErrInvalidReceiver)
	// Unregistered destination fails before any fee movement
	_, err = tn.epA.Send(context.Background(), 99, []byte("x"), testPayer)
	assert.ErrorIs(t, err, ErrInvalidReceiver)
	assert.Equal(
		t,
		uint64(1000),
		tn.ledgerA.Balance(testFeeAsset, testPayer),
	)
}

func TestSendWithTokens(t *testing.T) {
	tn := newTestNetwork(t)
	require.NoError(t, tn.ledgerA.Mint(testAsset, testPayer, 500))
	_, err := tn.epA.SendWithTokens(
		context.Background(),
		2,
		testAsset,
		"receiver",
		200,
		testPayer,
	)
	require.NoError(t, err)
	// Tokens left the source domain's supply
	assert.Equal(t, uint64(300), tn.ledgerA.Balance(testAsset, testPayer))
	assert.Equal(t, uint64(300), tn.ledgerA.TotalSupply(testAsset))
	// ...and arrive at the destination receiver
	require.Eventually(t, func() bool {
		return tn.ledgerB.Balance(testAsset, "receiver") == 200
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(200), tn.ledgerB.TotalSupply(testAsset))
}

func TestSendWithTokensInsufficientTokens(t *testing.T) {
	tn := newTestNetwork(t)
	require.NoError(t, tn.ledgerA.Mint(testAsset, testPayer, 10))
	_, err := tn.epA.SendWithTokens(
		context.Background(),
		2,
		testAsset,
		"receiver",
		200,
		testPayer,
	)
	require.Error(t, err)
	// Fee was refunded, tokens untouched
	assert.Equal(t, uint64(1000), tn.ledgerA.Balance(testFeeAsset, testPayer))
	assert.Equal(t, uint64(10), tn.ledgerA.Balance(testAsset, testPayer))
}

func TestDuplicateRegistration(t *testing.T) {
	tn := newTestNetwork(t)
	_, err := tn.network.Register(1, token.NewLedger())
	assert.ErrorIs(t, err, ErrDomainRegistered)
}

func TestSendAfterStop(t *testing.T) {
	net := NewNetwork(NetworkConfig{FeeAsset: testFeeAsset})
	ledger := token.NewLedger()
	ep, err := net.Register(1, ledger)
	require.NoError(t, err)
	_, err = net.Register(2, token.NewLedger())
	require.NoError(t, err)
	net.Stop()
	_, err = ep.Send(context.Background(), 2, nil, testPayer)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestNetworkMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	net := NewNetwork(NetworkConfig{
		PromRegistry: registry,
		FeeAsset:     testFeeAsset,
		BaseFee:      5,
	})
	defer net.Stop()
	ledgerA := token.NewLedger()
	require.NoError(t, ledgerA.Mint(testFeeAsset, testPayer, 100))
	epA, err := net.Register(1, ledgerA)
	require.NoError(t, err)
	epB, err := net.Register(2, token.NewLedger())
	require.NoError(t, err)
	recv := &collectingReceiver{}
	epB.SetReceiver(recv)
	_, err = epA.Send(context.Background(), 2, nil, testPayer)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(net.metrics.messagesDelivered) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(net.metrics.messagesSent))
	assert.Equal(t, float64(5), testutil.ToFloat64(net.metrics.feesCharged))
}
