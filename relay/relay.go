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

// Package relay implements the fee-metered asynchronous message transport
// between domains. A send either succeeds before consuming fee funds or
// fails atomically; delivery and ordering across domains are not guaranteed
// at this layer.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/zenith-chromion/zenith/token"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultQueueSize       = 100
	defaultDeliveryWorkers = 2

	// FeeCollectorAccount receives relay fees on the sending domain's ledger
	FeeCollectorAccount = token.Address("relay:fees")
	// CustodyAccount escrows token transfers while in relay custody
	CustodyAccount = token.Address("relay:custody")
)

var (
	ErrInvalidReceiver        = errors.New("invalid receiver")
	ErrInsufficientFeeBalance = errors.New("insufficient fee balance")
	ErrDomainRegistered       = errors.New("domain already registered")
	ErrStopped                = errors.New("relay network stopped")
)

// Receiver handles messages delivered by the relay's own delivery mechanism.
// The relay does not interpret payload contents; the consuming component
// decodes them.
type Receiver interface {
	HandleMessage(ctx context.Context, msg Message) error
}

type NetworkConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	FeeAsset     token.Asset
	BaseFee      uint64
	FeePerByte   uint64
	QueueSize    int
	Workers      int
}

// Network routes messages between registered domain endpoints. Delivery is
// asynchronous via a worker pool and carries no ordering guarantee between
// domains.
type Network struct {
	config    NetworkConfig
	logger    *slog.Logger
	metrics   *networkMetrics
	endpoints map[DomainID]*Endpoint
	queue     chan Message
	stopCh    chan struct{}
	wg        sync.WaitGroup
	nextMsgId atomic.Uint64
	stopped   atomic.Bool
	mu        sync.RWMutex
}

func NewNetwork(cfg NetworkConfig) *Network {
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Workers == 0 {
		cfg.Workers = defaultDeliveryWorkers
	}
	n := &Network{
		config:    cfg,
		logger:    cfg.Logger.With("component", "relay"),
		endpoints: make(map[DomainID]*Endpoint),
		queue:     make(chan Message, cfg.QueueSize),
		stopCh:    make(chan struct{}),
	}
	if cfg.PromRegistry != nil {
		n.initMetrics(cfg.PromRegistry)
	}
	for range cfg.Workers {
		n.wg.Add(1)
		go n.deliveryWorker()
	}
	return n
}

// Register creates an endpoint for a domain backed by that domain's token
// ledger. Fees for sends from the domain are charged against this ledger.
func (n *Network) Register(
	domain DomainID,
	ledger *token.Ledger,
) (*Endpoint, error) {
	if domain == 0 {
		return nil, fmt.Errorf("%w: zero domain", ErrInvalidReceiver)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.endpoints[domain]; ok {
		return nil, fmt.Errorf("%w: %d", ErrDomainRegistered, domain)
	}
	ep := &Endpoint{
		network: n,
		domain:  domain,
		ledger:  ledger,
	}
	n.endpoints[domain] = ep
	return ep, nil
}

// Fee returns the fee charged for a payload of the given size sent to the
// given destination
func (n *Network) Fee(dest DomainID, payloadLen int) uint64 {
	// Fee schedule is currently destination-independent
	_ = dest
	return n.config.BaseFee + n.config.FeePerByte*uint64(payloadLen) //nolint:gosec
}

// Stop shuts down the delivery workers. Messages still queued are dropped,
// matching the layer's at-most-once delivery contract.
func (n *Network) Stop() {
	if !n.stopped.CompareAndSwap(false, true) {
		return
	}
	close(n.stopCh)
	n.wg.Wait()
}

func (n *Network) endpoint(domain DomainID) *Endpoint {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.endpoints[domain]
}

func (n *Network) enqueue(ctx context.Context, msg Message) error {
	select {
	case <-n.stopCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	case n.queue <- msg:
		return nil
	}
}

func (n *Network) deliveryWorker() {
	defer n.wg.Done()
	for {
		select {
		case <-n.stopCh:
			return
		case msg := <-n.queue:
			n.deliver(msg)
		}
	}
}

func (n *Network) deliver(msg Message) {
	ep := n.endpoint(msg.Dest)
	if ep == nil {
		// Destination was unregistered after the send was accepted
		n.logger.Warn(
			"dropping message for unknown domain",
			"dest", msg.Dest,
			"message_id", msg.ID,
		)
		if n.metrics != nil {
			n.metrics.deliveryFailures.Inc()
		}
		return
	}
	// Credit carried tokens to the destination's custody, then forward to
	// the receiver account
	for _, xfer := range msg.Transfers {
		if err := ep.ledger.Mint(xfer.Asset, CustodyAccount, xfer.Amount); err != nil {
			n.logger.Error(
				"failed to credit destination custody",
				"dest", msg.Dest,
				"message_id", msg.ID,
				"error", err,
			)
			continue
		}
		if err := ep.ledger.Transfer(
			xfer.Asset,
			CustodyAccount,
			xfer.Receiver,
			xfer.Amount,
		); err != nil {
			n.logger.Error(
				"failed to forward tokens from custody",
				"dest", msg.Dest,
				"message_id", msg.ID,
				"error", err,
			)
		}
	}
	receiver := ep.getReceiver()
	if receiver == nil {
		n.logger.Warn(
			"dropping message for domain with no receiver",
			"dest", msg.Dest,
			"message_id", msg.ID,
		)
		if n.metrics != nil {
			n.metrics.deliveryFailures.Inc()
		}
		return
	}
	if err := receiver.HandleMessage(context.Background(), msg); err != nil {
		n.logger.Warn(
			"message handler returned error",
			"dest", msg.Dest,
			"message_id", msg.ID,
			"error", err,
		)
		if n.metrics != nil {
			n.metrics.deliveryFailures.Inc()
		}
		return
	}
	if n.metrics != nil {
		n.metrics.messagesDelivered.Inc()
	}
}

// Endpoint is a domain's attachment point to the relay network
type Endpoint struct {
	network  *Network
	ledger   *token.Ledger
	receiver Receiver
	domain   DomainID
	mu       sync.RWMutex
}

// Domain returns the domain this endpoint is registered for
func (e *Endpoint) Domain() DomainID {
	return e.domain
}

// SetReceiver installs the component that handles inbound messages for this
// domain
func (e *Endpoint) SetReceiver(receiver Receiver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.receiver = receiver
}

func (e *Endpoint) getReceiver() Receiver {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.receiver
}

// Send dispatches an opaque payload to another domain. The destination is
// validated before any fee computation or asset movement. The fee is charged
// to the payer's fee-asset account on the sending domain's ledger.
func (e *Endpoint) Send(
	ctx context.Context,
	dest DomainID,
	payload []byte,
	payer token.Address,
) (MessageID, error) {
	return e.send(ctx, dest, payload, nil, payer)
}

// SendWithTokens dispatches a payload along with a token transfer. The
// tokens are pulled from the payer into relay custody before dispatch and
// forwarded to the destination's custody on arrival.
func (e *Endpoint) SendWithTokens(
	ctx context.Context,
	dest DomainID,
	asset token.Asset,
	receiver token.Address,
	amount uint64,
	payer token.Address,
) (MessageID, error) {
	transfers := []TokenTransfer{
		{Asset: asset, Receiver: receiver, Amount: amount},
	}
	return e.send(ctx, dest, nil, transfers, payer)
}

func (e *Endpoint) send(
	ctx context.Context,
	dest DomainID,
	payload []byte,
	transfers []TokenTransfer,
	payer token.Address,
) (MessageID, error) {
	n := e.network
	// Validate the destination before computing fees so a bad send never
	// touches the payer's fee-asset allowance
	if dest == 0 {
		return 0, fmt.Errorf("%w: zero destination domain", ErrInvalidReceiver)
	}
	if n.endpoint(dest) == nil {
		return 0, fmt.Errorf(
			"%w: domain %d not registered",
			ErrInvalidReceiver,
			dest,
		)
	}
	fee := n.Fee(dest, len(payload))
	if have := e.ledger.Balance(n.config.FeeAsset, payer); have < fee {
		return 0, fmt.Errorf(
			"%w: have %d, need %d",
			ErrInsufficientFeeBalance,
			have,
			fee,
		)
	}
	if fee > 0 {
		if err := e.ledger.Transfer(
			n.config.FeeAsset,
			payer,
			FeeCollectorAccount,
			fee,
		); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInsufficientFeeBalance, err)
		}
	}
	refundFee := func() {
		if fee > 0 {
			e.ledger.Transfer( //nolint:errcheck
				n.config.FeeAsset,
				FeeCollectorAccount,
				payer,
				fee,
			)
		}
	}
	// Pull carried tokens into relay custody before dispatch. The tokens
	// leave this domain's supply while bridged.
	for i, xfer := range transfers {
		err := e.ledger.Transfer(xfer.Asset, payer, CustodyAccount, xfer.Amount)
		if err == nil {
			err = e.ledger.Burn(xfer.Asset, CustodyAccount, xfer.Amount)
		}
		if err != nil {
			// Unwind already-escrowed transfers and the fee
			for _, prev := range transfers[:i] {
				e.ledger.Mint(prev.Asset, payer, prev.Amount) //nolint:errcheck
			}
			refundFee()
			return 0, fmt.Errorf("failed to escrow tokens: %w", err)
		}
	}
	msg := Message{
		ID:        MessageID(n.nextMsgId.Add(1)),
		Source:    e.domain,
		Dest:      dest,
		Payload:   payload,
		Transfers: transfers,
	}
	if err := n.enqueue(ctx, msg); err != nil {
		// Unwind so a failed send has no effect
		for _, xfer := range transfers {
			e.ledger.Mint(xfer.Asset, payer, xfer.Amount) //nolint:errcheck
		}
		refundFee()
		return 0, err
	}
	n.logger.Debug(
		"message accepted",
		"source", e.domain,
		"dest", dest,
		"message_id", msg.ID,
		"fee", fee,
	)
	if n.metrics != nil {
		n.metrics.messagesSent.Inc()
		n.metrics.feesCharged.Add(float64(fee))
	}
	return msg.ID, nil
}
