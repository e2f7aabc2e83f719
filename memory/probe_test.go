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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/go-joinorder/sql"
)

func TestProbePicksFirstMatchingResult(t *testing.T) {
	require := require.New(t)
	ctx := sql.NewEmptyContext()

	scratch := NewScratch()
	scratch.AddStream(0, 100)
	scratch.AddStream(1, 100)

	probe := NewProbe(scratch)
	probe.Script(0,
		ProbeResult{Given: []sql.StreamId{1}, Cost: 5, Selectivity: 0.1, Unique: true},
		ProbeResult{Cost: 40},
	)

	// With stream 1 inactive only the standalone fallback applies.
	candidate, err := probe.GetInversion(ctx, 0, nil)
	require.NoError(err)
	require.Equal(40.0, candidate.Cost)
	require.Equal(1.0, candidate.Selectivity)
	require.Empty(candidate.DependentFromStreams)

	scratch.Activate(1)
	candidate, err = probe.GetInversion(ctx, 0, nil)
	require.NoError(err)
	require.Equal(5.0, candidate.Cost)
	require.Equal(0.1, candidate.Selectivity)
	require.True(candidate.Unique)
	require.True(candidate.DependentFromStreams.Contains(1))

	require.Equal(2, probe.Calls())
}

func TestProbeNavigatedRequiresSort(t *testing.T) {
	require := require.New(t)
	ctx := sql.NewEmptyContext()

	scratch := NewScratch()
	probe := NewProbe(scratch)
	probe.Script(0, ProbeResult{Cost: 10, Navigated: true})

	candidate, err := probe.GetInversion(ctx, 0, nil)
	require.NoError(err)
	require.False(candidate.Navigated)

	candidate, err = probe.GetInversion(ctx, 0, &sql.SortClause{Fields: []string{"a"}})
	require.NoError(err)
	require.True(candidate.Navigated)
}

func TestProbeUnscriptedStream(t *testing.T) {
	require := require.New(t)

	probe := NewProbe(NewScratch())
	_, err := probe.GetInversion(sql.NewEmptyContext(), 3, nil)
	require.Error(err)
	require.True(ErrStreamNotScripted.Is(err))
}

func TestScratchDefaults(t *testing.T) {
	require := require.New(t)

	scratch := NewScratch()
	require.Equal(1.0, scratch.Cardinality(0))

	scratch.AddStream(0, 0.25)
	require.Equal(1.0, scratch.Cardinality(0))

	scratch.AddStream(1, 500)
	require.Equal(500.0, scratch.Cardinality(1))

	require.False(scratch.Active(1))
	scratch.Activate(1)
	require.True(scratch.Active(1))

	// ActiveStreams returns a copy, not a view of the live set.
	active := scratch.ActiveStreams()
	scratch.Deactivate(1)
	require.True(active.Contains(1))
	require.False(scratch.Active(1))
}
