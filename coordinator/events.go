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

package coordinator

import (
	"github.com/zenith-chromion/zenith/event"
	"github.com/zenith-chromion/zenith/relay"
)

const (
	ReportReceivedEventType    event.EventType = "coordinator.report_received"
	ProposalFinalizedEventType event.EventType = "coordinator.proposal_finalized"
	ProposalExpiredEventType   event.EventType = "coordinator.proposal_expired"
)

type ReportReceivedEvent struct {
	ProposalId uint64
	Domain     relay.DomainID
}

type ProposalFinalizedEvent struct {
	ProposalId   uint64
	TotalFor     uint64
	TotalAgainst uint64
	Approved     bool
}

type ProposalExpiredEvent struct {
	ProposalId uint64
	Reported   int
	Expected   int
}
