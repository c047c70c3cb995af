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
	"errors"
	"fmt"

	"github.com/zenith-chromion/zenith/token"

	"github.com/fxamacker/cbor/v2"
)

// DomainID identifies an execution domain on the relay network. Zero is
// never a valid domain.
type DomainID uint64

// MessageID identifies a message accepted by the relay network
type MessageID uint64

// PayloadKind is the discriminant of the tagged payload tuple
type PayloadKind uint8

const (
	PayloadTallyReport PayloadKind = 1
	PayloadDecision    PayloadKind = 2
)

var ErrUnknownPayloadKind = errors.New("unknown payload kind")

// Message is an opaque payload in transit between two domains. The relay
// does not interpret payload contents.
type Message struct {
	Payload   []byte
	Transfers []TokenTransfer
	ID        MessageID
	Source    DomainID
	Dest      DomainID
}

// TokenTransfer is an asset movement carried alongside a message
type TokenTransfer struct {
	Asset    token.Asset
	Receiver token.Address
	Amount   uint64
}

// envelope is the CBOR wire form: a two-element array of kind discriminant
// and kind-specific body
type envelope struct {
	_    struct{} `cbor:",toarray"`
	Kind PayloadKind
	Body cbor.RawMessage
}

// TallyReport carries a closed proposal's tally from a domain to the
// aggregation coordinator
type TallyReport struct {
	_            struct{} `cbor:",toarray"`
	ProposalId   uint64
	Domain       DomainID
	VotesFor     uint64
	VotesAgainst uint64
	Callback     token.Address
}

// Decision carries the aggregated approval decision from the coordinator
// back to a domain's recorded callback target
type Decision struct {
	_          struct{} `cbor:",toarray"`
	ProposalId uint64
	Approved   bool
	Callback   token.Address
}

func encodePayload(kind PayloadKind, body any) ([]byte, error) {
	bodyCbor, err := cbor.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload body: %w", err)
	}
	ret, err := cbor.Marshal(envelope{Kind: kind, Body: bodyCbor})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload envelope: %w", err)
	}
	return ret, nil
}

// EncodeTallyReport encodes a tally report payload
func EncodeTallyReport(report *TallyReport) ([]byte, error) {
	return encodePayload(PayloadTallyReport, report)
}

// EncodeDecision encodes a decision payload
func EncodeDecision(decision *Decision) ([]byte, error) {
	return encodePayload(PayloadDecision, decision)
}

// DecodePayload decodes a payload into its concrete type. Returns either a
// *TallyReport or a *Decision.
func DecodePayload(data []byte) (any, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode payload envelope: %w", err)
	}
	switch env.Kind {
	case PayloadTallyReport:
		var report TallyReport
		if err := cbor.Unmarshal(env.Body, &report); err != nil {
			return nil, fmt.Errorf("failed to decode tally report: %w", err)
		}
		return &report, nil
	case PayloadDecision:
		var decision Decision
		if err := cbor.Unmarshal(env.Body, &decision); err != nil {
			return nil, fmt.Errorf("failed to decode decision: %w", err)
		}
		return &decision, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPayloadKind, env.Kind)
	}
}
