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
	"sort"

	"github.com/dolthub/go-joinorder/sql"
)

// indexRelationship is an edge in the stream dependency graph: "if the
// owning stream is driven first, the target stream may use an index keyed
// by its output", with cost and cardinality estimated under that
// assumption.
type indexRelationship struct {
	stream      sql.StreamId
	cost        float64
	cardinality float64
	unique      bool
}

// relationshipCheaperThan orders relationships for the search: a unique
// relationship always beats a non-unique one, and within the same
// uniqueness class the lower cost wins.
func relationshipCheaperThan(a, b indexRelationship) bool {
	if a.unique != b.unique {
		return a.unique
	}
	return a.cost < b.cost
}

// streamInfo holds the per-stream state the ordering core accumulates: the
// base access estimates from the isolated probe, the outgoing indexed
// relationships, and the transient used mark consumed by the search.
type streamInfo struct {
	stream sql.StreamId

	baseCost        float64
	baseSelectivity float64
	baseIndexes     int
	baseUnique      bool
	baseNavigated   bool

	// previousExpectedStreams counts the other streams that could supply
	// a binding to one of this stream's indexes.
	previousExpectedStreams int

	used bool

	// indexedRelationships is kept sorted by relationshipCheaperThan.
	indexedRelationships []indexRelationship
}

// isIndependent reports whether no other stream can make this stream's
// access cheaper.
func (si *streamInfo) isIndependent() bool {
	return si.previousExpectedStreams == 0
}

// isFiltered reports whether the base access applies at least one index
// predicate.
func (si *streamInfo) isFiltered() bool {
	return si.baseIndexes > 0
}

// addRelationship inserts rel into the sorted relationship list, cheapest
// first.
func (si *streamInfo) addRelationship(rel indexRelationship) {
	i := sort.Search(len(si.indexedRelationships), func(i int) bool {
		return relationshipCheaperThan(rel, si.indexedRelationships[i])
	})
	si.indexedRelationships = append(si.indexedRelationships, indexRelationship{})
	copy(si.indexedRelationships[i+1:], si.indexedRelationships[i:])
	si.indexedRelationships[i] = rel
}

// streamInfoCheaperThan orders streams for the pre-search sort: an
// independent stream before any dependent one, then a unique base access
// before a non-unique one, then the lower base cost.
func streamInfoCheaperThan(a, b *streamInfo) bool {
	if a.isIndependent() != b.isIndependent() {
		return a.isIndependent()
	}
	if a.baseUnique != b.baseUnique {
		return a.baseUnique
	}
	return a.baseCost < b.baseCost
}

// joinedStream is one slot of the order under construction. number is the
// occupant along the path currently being explored, bestStream the
// occupant in the best order found so far.
type joinedStream struct {
	number     sql.StreamId
	bestStream sql.StreamId
}
