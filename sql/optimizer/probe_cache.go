// Copyright 2021-2022 Dolthub, Inc.
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

package optimizer

import (
	"github.com/mitchellh/hashstructure"

	"github.com/dolthub/go-joinorder/sql"
)

// CachingProbe memoizes inversion candidates by probed stream, active
// stream set and presence of a sort clause. The search re-probes the same
// stream under the same active set many times while exploring sibling
// orders; since probes are deterministic for a fixed active set, caching
// them changes the runtime but never the chosen order.
type CachingProbe struct {
	probe   sql.RetrievalProbe
	scratch sql.CompilerScratch
	entries map[uint64]*sql.InversionCandidate
}

type probeKey struct {
	Stream  sql.StreamId
	Active  []sql.StreamId
	HasSort bool
}

// NewCachingProbe wraps probe with a memoization layer keyed on the active
// stream set read from scratch.
func NewCachingProbe(probe sql.RetrievalProbe, scratch sql.CompilerScratch) *CachingProbe {
	return &CachingProbe{
		probe:   probe,
		scratch: scratch,
		entries: make(map[uint64]*sql.InversionCandidate),
	}
}

// GetInversion implements sql.RetrievalProbe.
func (p *CachingProbe) GetInversion(ctx *sql.Context, stream sql.StreamId, sort *sql.SortClause) (*sql.InversionCandidate, error) {
	key := probeKey{
		Stream:  stream,
		Active:  p.scratch.ActiveStreams().Slice(),
		HasSort: sort != nil,
	}
	hash, err := hashstructure.Hash(key, nil)
	if err != nil {
		return nil, err
	}

	if candidate, ok := p.entries[hash]; ok {
		return candidate, nil
	}

	candidate, err := p.probe.GetInversion(ctx, stream, sort)
	if err != nil {
		return nil, err
	}
	p.entries[hash] = candidate

	return candidate, nil
}
