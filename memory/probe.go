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

import (
	"gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/go-joinorder/sql"
)

// ErrStreamNotScripted is returned when the probe is asked about a stream
// it has no script for under the current active set.
var ErrStreamNotScripted = errors.NewKind("no probe script matches stream %d")

// ProbeResult is one scripted answer of the probe. Given lists the streams
// that must be active, besides the probed one, for this result to apply;
// they double as the dependency set reported to the caller. Results are
// matched in script order, so list the dependent results before the
// standalone fallback.
type ProbeResult struct {
	Given       []sql.StreamId
	Cost        float64
	Selectivity float64
	Unique      bool
	Navigated   bool
	Indexes     int
}

// Probe is a scripted retrieval probe. It consults the scratch's active
// set to pick the first matching scripted result for a stream, which makes
// it deterministic for a fixed active set, as the probe contract demands.
type Probe struct {
	scratch *Scratch
	scripts map[sql.StreamId][]ProbeResult
	calls   int
}

var _ sql.RetrievalProbe = (*Probe)(nil)

// NewProbe returns a probe reading its active set from scratch.
func NewProbe(scratch *Scratch) *Probe {
	return &Probe{
		scratch: scratch,
		scripts: make(map[sql.StreamId][]ProbeResult),
	}
}

// Script appends results to the stream's script.
func (p *Probe) Script(stream sql.StreamId, results ...ProbeResult) {
	p.scripts[stream] = append(p.scripts[stream], results...)
}

// Calls returns how many times GetInversion has been invoked.
func (p *Probe) Calls() int {
	return p.calls
}

// GetInversion implements sql.RetrievalProbe.
func (p *Probe) GetInversion(ctx *sql.Context, stream sql.StreamId, sort *sql.SortClause) (*sql.InversionCandidate, error) {
	p.calls++

	for _, result := range p.scripts[stream] {
		if !p.givenActive(result.Given) {
			continue
		}

		selectivity := result.Selectivity
		if selectivity == 0 {
			selectivity = 1
		}

		dependent := sql.NewStreamSet()
		for _, given := range result.Given {
			if given != stream {
				dependent.Add(given)
			}
		}

		return &sql.InversionCandidate{
			Cost:                 result.Cost,
			Selectivity:          selectivity,
			Unique:               result.Unique,
			Navigated:            result.Navigated && sort != nil,
			Indexes:              result.Indexes,
			DependentFromStreams: dependent,
		}, nil
	}

	return nil, ErrStreamNotScripted.New(stream)
}

func (p *Probe) givenActive(given []sql.StreamId) bool {
	for _, stream := range given {
		if !p.scratch.Active(stream) {
			return false
		}
	}
	return true
}
