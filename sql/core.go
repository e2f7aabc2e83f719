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

package sql

import "sort"

// StreamId identifies one rowset input to a join: a table, an index slice,
// or a derived source. Ids are assigned densely by the enclosing compiler
// and are stable for the lifetime of a compilation.
type StreamId uint16

// StreamSet is a set of stream ids.
type StreamSet map[StreamId]struct{}

// NewStreamSet returns a set containing the given streams.
func NewStreamSet(streams ...StreamId) StreamSet {
	set := make(StreamSet, len(streams))
	for _, stream := range streams {
		set[stream] = struct{}{}
	}
	return set
}

func (s StreamSet) Add(stream StreamId) {
	s[stream] = struct{}{}
}

func (s StreamSet) Contains(stream StreamId) bool {
	_, ok := s[stream]
	return ok
}

// Slice returns the members of the set in ascending order.
func (s StreamSet) Slice() []StreamId {
	streams := make([]StreamId, 0, len(s))
	for stream := range s {
		streams = append(streams, stream)
	}
	sort.Slice(streams, func(i, j int) bool { return streams[i] < streams[j] })
	return streams
}

// SortClause describes the ordering requested by the enclosing query. The
// ordering core never inspects the fields; it only forwards the clause to
// the retrieval probe, which decides whether an ordered index can satisfy
// it.
type SortClause struct {
	Fields []string
}

// InversionCandidate is the result of one retrieval probe: the estimated
// properties of the best index access for a stream given the currently
// active stream set.
type InversionCandidate struct {
	// Cost is the estimated cost of driving the stream once.
	Cost float64

	// Selectivity is the fraction of the stream's rows surviving the
	// access, in (0, 1].
	Selectivity float64

	// Unique is true if the access yields at most one row per probe.
	Unique bool

	// Navigated is true if an ordered index satisfies the requested sort
	// without a separate sort step.
	Navigated bool

	// Indexes is the number of indexes used by the access.
	Indexes int

	// DependentFromStreams holds the streams, other than the probed one,
	// whose active state contributed bindings to the chosen access.
	DependentFromStreams StreamSet
}

// RetrievalProbe is the index-selection oracle. Implementations must be
// deterministic for a fixed active stream set and must not mutate any
// state visible to the ordering core.
type RetrievalProbe interface {
	// GetInversion estimates the best index access for the stream. A nil
	// sort means no ordering is requested.
	GetInversion(ctx *Context, stream StreamId, sort *SortClause) (*InversionCandidate, error)
}

// CompilerScratch exposes the per-stream compilation state shared with the
// enclosing compiler: the "active" bits consulted by the retrieval probe
// and the base table cardinalities.
type CompilerScratch interface {
	// Activate marks the stream active. Paired with Deactivate.
	Activate(stream StreamId)

	// Deactivate clears the stream's active bit.
	Deactivate(stream StreamId)

	// Active reports whether the stream is currently active.
	Active(stream StreamId) bool

	// ActiveStreams returns the set of currently active streams.
	ActiveStreams() StreamSet

	// Cardinality returns the base table cardinality for the stream,
	// always >= 1.
	Cardinality(stream StreamId) float64
}
