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

package treasury

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zenith-chromion/zenith/database"
	"github.com/zenith-chromion/zenith/token"

	"github.com/fxamacker/cbor/v2"
)

const (
	managerKeyPrefix = "treasury/manager/"
	tiersKey         = "treasury/tiers"
)

func (t *Treasury) storeManager(
	addr token.Address,
	mgr *ManagerAccount,
) error {
	if t.db == nil {
		return nil
	}
	data, err := cbor.Marshal(mgr)
	if err != nil {
		return fmt.Errorf("failed to encode manager record: %w", err)
	}
	key := []byte(managerKeyPrefix + string(addr))
	if err := t.db.Set(key, data); err != nil {
		return fmt.Errorf("failed to store manager record: %w", err)
	}
	return nil
}

func (t *Treasury) deleteManager(addr token.Address) error {
	if t.db == nil {
		return nil
	}
	key := []byte(managerKeyPrefix + string(addr))
	if err := t.db.Delete(key); err != nil {
		return fmt.Errorf("failed to delete manager record: %w", err)
	}
	return nil
}

func (t *Treasury) storeTiers() error {
	if t.db == nil {
		return nil
	}
	data, err := cbor.Marshal(t.tiers)
	if err != nil {
		return fmt.Errorf("failed to encode tier table: %w", err)
	}
	if err := t.db.Set([]byte(tiersKey), data); err != nil {
		return fmt.Errorf("failed to store tier table: %w", err)
	}
	return nil
}

// load restores manager accounts and tier parameters from the state store
func (t *Treasury) load() error {
	if t.db == nil {
		return nil
	}
	err := t.db.ForEachPrefix(
		[]byte(managerKeyPrefix),
		func(key []byte, value []byte) error {
			addr := strings.TrimPrefix(string(key), managerKeyPrefix)
			var mgr ManagerAccount
			if err := cbor.Unmarshal(value, &mgr); err != nil {
				return fmt.Errorf(
					"failed to decode manager record %s: %w",
					addr,
					err,
				)
			}
			t.managers[token.Address(addr)] = &mgr
			return nil
		},
	)
	if err != nil {
		return err
	}
	if t.metrics != nil {
		t.metrics.managers.Set(float64(len(t.managers)))
	}
	data, err := t.db.Get([]byte(tiersKey))
	if err != nil {
		if errors.Is(err, database.ErrKeyNotFound) {
			// No stored tier table yet, keep the defaults
			return nil
		}
		return err
	}
	var tiers map[Tier]TierParams
	if err := cbor.Unmarshal(data, &tiers); err != nil {
		return fmt.Errorf("failed to decode tier table: %w", err)
	}
	t.tiers = tiers
	return nil
}
