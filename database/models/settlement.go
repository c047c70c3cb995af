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

package models

import "time"

// Settlement records a closed proposal's tally being transmitted to the
// aggregation coordinator
type Settlement struct {
	ID           uint   `gorm:"primarykey"`
	ProposalId   uint64 `gorm:"index;not null"`
	Domain       uint64 `gorm:"not null"`
	VotesFor     uint64 `gorm:"not null"`
	VotesAgainst uint64 `gorm:"not null"`
	MessageId    uint64 `gorm:"not null"`
	CreatedAt    time.Time
}

// TableName returns the table name
func (Settlement) TableName() string {
	return "settlement"
}
