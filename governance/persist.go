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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zenith-chromion/zenith/database"
	"github.com/zenith-chromion/zenith/token"

	"github.com/fxamacker/cbor/v2"
)

const (
	proposalKeyPrefix = "gov/proposal/"
	pointerKey        = "gov/pointer"
)

func proposalKey(proposalId uint64) []byte {
	key := make([]byte, len(proposalKeyPrefix)+8)
	copy(key, proposalKeyPrefix)
	binary.BigEndian.PutUint64(key[len(proposalKeyPrefix):], proposalId)
	return key
}

func (g *Governance) storeProposal(prop *Proposal) error {
	if g.db == nil {
		return nil
	}
	data, err := cbor.Marshal(prop)
	if err != nil {
		return fmt.Errorf("failed to encode proposal record: %w", err)
	}
	if err := g.db.Set(proposalKey(prop.Id), data); err != nil {
		return fmt.Errorf("failed to store proposal record: %w", err)
	}
	return nil
}

func (g *Governance) storePointer() error {
	if g.db == nil {
		return nil
	}
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, g.pointer)
	if err := g.db.Set([]byte(pointerKey), data); err != nil {
		return fmt.Errorf("failed to store settlement pointer: %w", err)
	}
	return nil
}

// load restores proposals and the settlement pointer from the state store
func (g *Governance) load() error {
	if g.db == nil {
		return nil
	}
	err := g.db.ForEachPrefix(
		[]byte(proposalKeyPrefix),
		func(key []byte, value []byte) error {
			var prop Proposal
			if err := cbor.Unmarshal(value, &prop); err != nil {
				return fmt.Errorf("failed to decode proposal record: %w", err)
			}
			if prop.Voters == nil {
				prop.Voters = make(map[token.Address]bool)
			}
			g.proposals[prop.Id] = &prop
			if prop.Id >= g.nextId {
				g.nextId = prop.Id + 1
			}
			return nil
		},
	)
	if err != nil {
		return err
	}
	data, err := g.db.Get([]byte(pointerKey))
	if err != nil {
		if errors.Is(err, database.ErrKeyNotFound) {
			return nil
		}
		return err
	}
	if len(data) != 8 {
		return fmt.Errorf("malformed settlement pointer: %d bytes", len(data))
	}
	g.pointer = binary.BigEndian.Uint64(data)
	return nil
}
