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

// DeadLetter records a proposal whose aggregation expired before all
// expected domains reported. The domain sets are stored as sorted
// comma-separated lists.
type DeadLetter struct {
	ID              uint   `gorm:"primarykey"`
	ProposalId      uint64 `gorm:"uniqueIndex;not null"`
	ReportedDomains string `gorm:"not null"`
	ExpectedDomains string `gorm:"not null"`
	CreatedAt       time.Time
}

// TableName returns the table name
func (DeadLetter) TableName() string {
	return "dead_letter"
}
