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
	"encoding/binary"
	"fmt"

	"github.com/zenith-chromion/zenith/relay"
	"github.com/zenith-chromion/zenith/token"

	"github.com/fxamacker/cbor/v2"
)

const (
	tallyKeyPrefix   = "agg/tally/"
	expiredKeyPrefix = "agg/expired/"
)

func prefixedKey(prefix string, proposalId uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], proposalId)
	return key
}

func (c *Coordinator) storeTally(tally *Tally) error {
	if c.db == nil {
		return nil
	}
	data, err := cbor.Marshal(tally)
	if err != nil {
		return fmt.Errorf("failed to encode tally record: %w", err)
	}
	key := prefixedKey(tallyKeyPrefix, tally.ProposalId)
	if err := c.db.Set(key, data); err != nil {
		return fmt.Errorf("failed to store tally record: %w", err)
	}
	return nil
}

func (c *Coordinator) deleteTally(proposalId uint64) error {
	if c.db == nil {
		return nil
	}
	key := prefixedKey(tallyKeyPrefix, proposalId)
	if err := c.db.Delete(key); err != nil {
		return fmt.Errorf("failed to delete tally record: %w", err)
	}
	return nil
}

func (c *Coordinator) storeExpired(proposalId uint64) error {
	if c.db == nil {
		return nil
	}
	key := prefixedKey(expiredKeyPrefix, proposalId)
	if err := c.db.Set(key, []byte{1}); err != nil {
		return fmt.Errorf("failed to store expiry marker: %w", err)
	}
	return nil
}

// load restores aggregation state and expiry markers from the state store
func (c *Coordinator) load() error {
	if c.db == nil {
		return nil
	}
	err := c.db.ForEachPrefix(
		[]byte(tallyKeyPrefix),
		func(key []byte, value []byte) error {
			var tally Tally
			if err := cbor.Unmarshal(value, &tally); err != nil {
				return fmt.Errorf("failed to decode tally record: %w", err)
			}
			if tally.Callbacks == nil {
				tally.Callbacks = make(map[relay.DomainID]token.Address)
			}
			c.tallies[tally.ProposalId] = &tally
			return nil
		},
	)
	if err != nil {
		return err
	}
	err = c.db.ForEachPrefix(
		[]byte(expiredKeyPrefix),
		func(key []byte, value []byte) error {
			if len(key) < len(expiredKeyPrefix)+8 {
				return fmt.Errorf("malformed expiry marker key: %x", key)
			}
			proposalId := binary.BigEndian.Uint64(key[len(expiredKeyPrefix):])
			c.expired[proposalId] = true
			return nil
		},
	)
	if err != nil {
		return err
	}
	c.updatePendingMetric()
	return nil
}
