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

package governance

import (
	"time"

	"github.com/zenith-chromion/zenith/event"
	"github.com/zenith-chromion/zenith/token"
	"github.com/zenith-chromion/zenith/treasury"
)

const (
	ProposalCreatedEventType  event.EventType = "governance.proposal_created"
	VoteCastEventType         event.EventType = "governance.vote_cast"
	ProposalSettledEventType  event.EventType = "governance.proposal_settled"
	ProposalExecutedEventType event.EventType = "governance.proposal_executed"
)

type ProposalCreatedEvent struct {
	ProposalId uint64
	Kind       treasury.ProposalKind
	Subject    token.Address
	Deadline   time.Time
}

type VoteCastEvent struct {
	ProposalId uint64
	Voter      token.Address
	Support    bool
}

type ProposalSettledEvent struct {
	ProposalId   uint64
	VotesFor     uint64
	VotesAgainst uint64
}

type ProposalExecutedEvent struct {
	ProposalId uint64
	Kind       treasury.ProposalKind
	Approved   bool
}
