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

package memory

import "github.com/dolthub/go-joinorder/sql"

// Scratch is an in-memory compiler scratch, for embedders and tests that
// do not have a real compilation context behind them.
type Scratch struct {
	active        sql.StreamSet
	cardinalities map[sql.StreamId]float64
}

var _ sql.CompilerScratch = (*Scratch)(nil)

// NewScratch returns an empty scratch. Streams gain a cardinality through
// AddStream; unknown streams report a cardinality of one.
func NewScratch() *Scratch {
	return &Scratch{
		active:        sql.NewStreamSet(),
		cardinalities: make(map[sql.StreamId]float64),
	}
}

// AddStream registers a stream with its base table cardinality, floored at
// one.
func (s *Scratch) AddStream(stream sql.StreamId, cardinality float64) {
	if cardinality < 1 {
		cardinality = 1
	}
	s.cardinalities[stream] = cardinality
}

// Activate implements sql.CompilerScratch.
func (s *Scratch) Activate(stream sql.StreamId) {
	s.active.Add(stream)
}

// Deactivate implements sql.CompilerScratch.
func (s *Scratch) Deactivate(stream sql.StreamId) {
	delete(s.active, stream)
}

// Active implements sql.CompilerScratch.
func (s *Scratch) Active(stream sql.StreamId) bool {
	return s.active.Contains(stream)
}

// ActiveStreams implements sql.CompilerScratch.
func (s *Scratch) ActiveStreams() sql.StreamSet {
	return sql.NewStreamSet(s.active.Slice()...)
}

// Cardinality implements sql.CompilerScratch.
func (s *Scratch) Cardinality(stream sql.StreamId) float64 {
	if cardinality, ok := s.cardinalities[stream]; ok {
		return cardinality
	}
	return 1
}
