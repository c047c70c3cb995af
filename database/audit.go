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

package database

import (
	"errors"
	"fmt"

	"github.com/zenith-chromion/zenith/database/models"

	"gorm.io/gorm"
)

var (
	ErrDecisionNotFound   = errors.New("decision not found")
	ErrDeadLetterNotFound = errors.New("dead-letter record not found")
)

// AddSettlement appends a settlement audit record
func (d *Database) AddSettlement(rec *models.Settlement) error {
	if result := d.audit.Create(rec); result.Error != nil {
		return fmt.Errorf("failed to add settlement record: %w", result.Error)
	}
	return nil
}

// AddDecision appends a decision audit record
func (d *Database) AddDecision(rec *models.Decision) error {
	if result := d.audit.Create(rec); result.Error != nil {
		return fmt.Errorf("failed to add decision record: %w", result.Error)
	}
	return nil
}

// AddDeadLetter appends a dead-letter audit record for an expired aggregation
func (d *Database) AddDeadLetter(rec *models.DeadLetter) error {
	if result := d.audit.Create(rec); result.Error != nil {
		return fmt.Errorf("failed to add dead-letter record: %w", result.Error)
	}
	return nil
}

// GetDecision returns the decision audit record for a proposal, or
// ErrDecisionNotFound if no decision has been recorded
func (d *Database) GetDecision(proposalId uint64) (*models.Decision, error) {
	var rec models.Decision
	result := d.audit.Where("proposal_id = ?", proposalId).First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrDecisionNotFound
		}
		return nil, result.Error
	}
	return &rec, nil
}

// GetDeadLetter returns the dead-letter audit record for a proposal, or
// ErrDeadLetterNotFound if the proposal never expired
func (d *Database) GetDeadLetter(proposalId uint64) (*models.DeadLetter, error) {
	var rec models.DeadLetter
	result := d.audit.Where("proposal_id = ?", proposalId).First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrDeadLetterNotFound
		}
		return nil, result.Error
	}
	return &rec, nil
}

// GetSettlements returns all settlement audit records for a proposal in
// insertion order
func (d *Database) GetSettlements(
	proposalId uint64,
) ([]models.Settlement, error) {
	var recs []models.Settlement
	result := d.audit.Where("proposal_id = ?", proposalId).
		Order("id").
		Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}
	return recs, nil
}
