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
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dolthub/go-joinorder/sql"
)

const debugJoinOrderKey = "DEBUG_JOINORDER"

// minimumCardinality is the floor applied to every per-position cardinality
// estimate so that cumulative cardinalities never collapse to zero.
const minimumCardinality = 1.0

// InnerJoin decides the order in which the streams of an inner join should
// be driven at execution time. Construction runs the baseline coster and
// the dependency builder; FindJoinOrder then searches the permutation
// space reachable through the dependency graph. One InnerJoin serves one
// inner-join list of one compilation and is not safe for concurrent use.
type InnerJoin struct {
	ctx     *sql.Context
	probe   sql.RetrievalProbe
	scratch sql.CompilerScratch

	sort           *sql.SortClause
	plan           bool
	favorFirstRows bool

	// Debug enables verbose search logging, also switched on by the
	// DEBUG_JOINORDER environment variable.
	Debug bool

	innerStreams  []*streamInfo
	joinedStreams []joinedStream

	bestCount        int
	bestCost         float64
	remainingStreams int
}

// InnerJoinOption configures an InnerJoin at construction.
type InnerJoinOption func(*InnerJoin)

// WithSort sets the sort clause requested by the enclosing query. Base
// navigability is measured against it, and the first stream of every
// candidate order is costed with it.
func WithSort(s *sql.SortClause) InnerJoinOption {
	return func(ij *InnerJoin) {
		ij.sort = s
	}
}

// WithExplicitPlan marks the stream order as user-supplied. The order of
// the streams given to NewInnerJoin is then authoritative: no re-sorting,
// no re-costing, no search beyond the declared order.
func WithExplicitPlan() InnerJoinOption {
	return func(ij *InnerJoin) {
		ij.plan = true
	}
}

// WithFavorFirstRows makes the driver prefer orders that start with a
// navigational stream, so initial rows are produced without a
// materializing sort step.
func WithFavorFirstRows() InnerJoinOption {
	return func(ij *InnerJoin) {
		ij.favorFirstRows = true
	}
}

// WithDebug enables verbose search logging.
func WithDebug() InnerJoinOption {
	return func(ij *InnerJoin) {
		ij.Debug = true
	}
}

// NewInnerJoin creates the ordering core for the given candidate streams
// and immediately calculates their stream info: base costs first, then the
// inter-stream dependency graph. Returns an error if the retrieval probe
// fails; the scratch's active bits are restored in that case.
func NewInnerJoin(
	ctx *sql.Context,
	probe sql.RetrievalProbe,
	scratch sql.CompilerScratch,
	streams []sql.StreamId,
	opts ...InnerJoinOption,
) (*InnerJoin, error) {
	ij := &InnerJoin{
		ctx:           ctx,
		probe:         probe,
		scratch:       scratch,
		Debug:         os.Getenv(debugJoinOrderKey) != "",
		innerStreams:  make([]*streamInfo, 0, len(streams)),
		joinedStreams: make([]joinedStream, len(streams)),
	}
	for _, opt := range opts {
		opt(ij)
	}

	for _, stream := range streams {
		ij.innerStreams = append(ij.innerStreams, &streamInfo{stream: stream})
	}

	if err := ij.calculateStreamInfo(); err != nil {
		return nil, err
	}
	return ij, nil
}

// Log prints a debug message when the InnerJoin is in debug mode.
func (ij *InnerJoin) Log(msg string, args ...interface{}) {
	if ij != nil && ij.Debug {
		logrus.WithField("context", ij.ctx.Id()).Infof(msg, args...)
	}
}

// calculateStreamInfo fills in the base estimates for every stream and
// collects the indexed relationships between them. The base pass runs with
// only the probed stream active; the dependency pass runs with every
// candidate stream active at once.
func (ij *InnerJoin) calculateStreamInfo() error {
	span, ctx := ij.ctx.Span("inner_join.calculate_stream_info")
	defer span.Finish()

	streams := make([]sql.StreamId, 0, len(ij.innerStreams))

	for _, innerStream := range ij.innerStreams {
		streams = append(streams, innerStream.stream)

		ij.scratch.Activate(innerStream.stream)
		candidate, err := ij.probe.GetInversion(ctx, innerStream.stream, ij.sort)
		ij.scratch.Deactivate(innerStream.stream)
		if err != nil {
			return err
		}
		if err = validateCandidate(innerStream.stream, candidate); err != nil {
			return err
		}

		innerStream.baseCost = candidate.Cost
		innerStream.baseSelectivity = candidate.Selectivity
		innerStream.baseIndexes = candidate.Indexes
		innerStream.baseUnique = candidate.Unique
		innerStream.baseNavigated = candidate.Navigated
	}

	// The dependency pass needs every stream visible to the probe so that
	// any stream can show up as a binding source for any other.
	holder := newStreamStateHolder(ij.scratch, streams)
	holder.activate()
	defer holder.release()

	for _, innerStream := range ij.innerStreams {
		if err := ij.getIndexedRelationships(ctx, innerStream); err != nil {
			return err
		}
	}

	// Unless an explicit plan is enforced, sort the streams on independency
	// and cost. The sort is stable so that equal streams keep their arrival
	// order and repeated compilations pick the same winner.
	if !ij.plan && len(ij.innerStreams) > 1 {
		sort.SliceStable(ij.innerStreams, func(i, j int) bool {
			return streamInfoCheaperThan(ij.innerStreams[i], ij.innerStreams[j])
		})
	}

	return nil
}

// getIndexedRelationships checks which other streams could supply bound
// values to an index on testStream. Every such base stream gets an edge to
// testStream attached, and testStream's previous-expected count grows by
// one per edge.
func (ij *InnerJoin) getIndexedRelationships(ctx *sql.Context, testStream *streamInfo) error {
	candidate, err := ij.probe.GetInversion(ctx, testStream.stream, nil)
	if err != nil {
		return err
	}
	if err = validateCandidate(testStream.stream, candidate); err != nil {
		return err
	}

	cardinality := ij.scratch.Cardinality(testStream.stream)

	for _, baseStream := range ij.innerStreams {
		if baseStream.stream == testStream.stream {
			continue
		}
		if !candidate.DependentFromStreams.Contains(baseStream.stream) {
			continue
		}

		rel := indexRelationship{
			stream:      testStream.stream,
			unique:      candidate.Unique,
			cost:        candidate.Cost,
			cardinality: cardinality,
		}
		if !candidate.Unique {
			rel.cardinality = cardinality * candidate.Selectivity
		}

		baseStream.addRelationship(rel)
		testStream.previousExpectedStreams++
	}

	return nil
}

// estimateCost asks the probe for the cost of driving stream at the current
// point of the search. The sort clause participates only when the stream
// would occupy the first slot, because only the first stream's access
// decides whether the requested sort can be satisfied by navigation.
func (ij *InnerJoin) estimateCost(ctx *sql.Context, stream sql.StreamId, start bool) (cost, cardinality float64, err error) {
	var s *sql.SortClause
	if start {
		s = ij.sort
	}

	candidate, err := ij.probe.GetInversion(ctx, stream, s)
	if err != nil {
		return 0, 0, err
	}
	if err = validateCandidate(stream, candidate); err != nil {
		return 0, 0, err
	}

	cardinality = ij.scratch.Cardinality(stream) * candidate.Selectivity
	if cardinality < minimumCardinality {
		cardinality = minimumCardinality
	}

	return candidate.Cost, cardinality, nil
}

// FindJoinOrder returns the next best ordered list of streams to join and
// marks each returned stream used. An empty result means no candidate
// streams remain. Callers drive it repeatedly until every stream has been
// placed in some order.
func (ij *InnerJoin) FindJoinOrder() ([]sql.StreamId, error) {
	span, ctx := ij.ctx.Span("inner_join.find_join_order")
	defer span.Finish()

	ij.bestCount = 0
	ij.remainingStreams = 0

	ij.logStartOrder()

	// A stream counts toward navigations only while no filtered stream has
	// been seen alongside it: pulling a filtered stream into the order
	// would invalidate reading rows straight out of the navigational
	// index.
	filters, navigations := 0, 0

	for _, innerStream := range ij.innerStreams {
		if innerStream.used {
			continue
		}
		ij.remainingStreams++

		currentFilter := 0
		if innerStream.isFiltered() {
			currentFilter = 1
		}

		if navigations > 0 && currentFilter > 0 {
			navigations = 0
		}
		filters += currentFilter

		if innerStream.baseNavigated && currentFilter == filters {
			navigations++
		}

		if innerStream.isIndependent() {
			if ij.bestCount == 0 || innerStream.baseCost < ij.bestCost {
				ij.joinedStreams[0].bestStream = innerStream.stream
				ij.bestCount = 1
				ij.bestCost = innerStream.baseCost
			}
		}
	}

	if ij.bestCount == 0 {
		processList := make([]indexRelationship, 0, len(ij.innerStreams))

		for _, innerStream := range ij.innerStreams {
			if innerStream.used {
				continue
			}

			// If optimization for first rows has been requested and index
			// navigations are possible, consider only join orders starting
			// with a navigational stream. Except cases when other streams
			// have local predicates applied.
			currentFilter := 0
			if innerStream.isFiltered() {
				currentFilter = 1
			}

			if !ij.favorFirstRows || navigations == 0 ||
				(innerStream.baseNavigated && currentFilter == filters) {
				processList = processList[:0]
				if err := ij.findBestOrder(ctx, 0, innerStream, processList, 0, 1); err != nil {
					return nil, err
				}
				ij.logProcessList(processList, innerStream.stream)

				if ij.plan {
					// With an explicit plan the declared order is the only
					// order; one seed settles it.
					break
				}
			}
		}
	}

	bestStreams := make([]sql.StreamId, 0, ij.bestCount)
	for i := 0; i < ij.bestCount; i++ {
		streamInfo := ij.getStreamInfo(ij.joinedStreams[i].bestStream)
		streamInfo.used = true
		bestStreams = append(bestStreams, ij.joinedStreams[i].bestStream)
	}

	ij.logBestOrder()

	return bestStreams, nil
}

// RemainingStreams returns the number of candidate streams not yet placed
// in any returned order.
func (ij *InnerJoin) RemainingStreams() int {
	remaining := 0
	for _, innerStream := range ij.innerStreams {
		if !innerStream.used {
			remaining++
		}
	}
	return remaining
}

// findBestOrder appends stream at the given position of the order under
// exploration and recurses on the cheapest reachable next stream. Every
// piece of state it touches, the scratch's active bit for the stream and
// the used flags of all streams, is restored before it returns, on the
// error path included.
func (ij *InnerJoin) findBestOrder(
	ctx *sql.Context,
	position int,
	stream *streamInfo,
	processList []indexRelationship,
	cost float64,
	cardinality float64,
) error {
	start := position == 0

	ij.scratch.Activate(stream.stream)
	defer ij.scratch.Deactivate(stream.stream)

	ij.joinedStreams[position].number = stream.stream
	position++

	// Save the used flags of every stream to reset the state after each
	// test.
	streamFlags := make([]bool, len(ij.innerStreams))
	for i, innerStream := range ij.innerStreams {
		streamFlags[i] = innerStream.used
	}
	defer func() {
		for i, flag := range streamFlags {
			ij.innerStreams[i].used = flag
		}
	}()

	// Compute the delta and total estimated cost to fetch this stream.
	// With an explicit plan the order is binding, so nothing is
	// re-evaluated.
	var newCost, newCardinality float64
	if !ij.plan {
		positionCost, positionCardinality, err := ij.estimateCost(ctx, stream.stream, start)
		if err != nil {
			return err
		}
		newCost = cost + cardinality*positionCost
		newCardinality = positionCardinality * cardinality
	}

	// If the partial order is either longer than any previous partial
	// order, or the same length and cheaper, save it as best.
	if position > ij.bestCount || (position == ij.bestCount && newCost < ij.bestCost) {
		ij.bestCount = position
		ij.bestCost = newCost
		for i := 0; i < position; i++ {
			ij.joinedStreams[i].bestStream = ij.joinedStreams[i].number
		}
	}

	ij.logFoundOrder(position, newCost, newCardinality)

	// Mark this stream as used in the sense that it is already included in
	// this particular proposed stream ordering.
	stream.used = true

	done := false

	// If we've used up all the streams there's no reason to go any
	// further.
	if position == ij.remainingStreams {
		done = true
	}

	// If an order with all streams placed is already known and the current
	// prefix can no longer improve on it, stop.
	if ij.bestCount == ij.remainingStreams && newCost >= ij.bestCost {
		done = true
	}

	if !done && !ij.plan {
		// Add the streams reachable from this one to the processing list,
		// keeping one entry per target stream, the cheaper one, and the
		// list sorted cheapest first.
		for _, relationship := range stream.indexedRelationships {
			relationStreamInfo := ij.getStreamInfo(relationship.stream)
			if relationStreamInfo.used {
				continue
			}

			found := false
			for i := range processList {
				if processList[i].stream != relationship.stream {
					continue
				}
				if relationshipCheaperThan(relationship, processList[i]) {
					processList = append(processList[:i], processList[i+1:]...)
				} else {
					found = true
				}
				break
			}
			if !found {
				processList = insertRelationship(processList, relationship)
			}
		}

		// Follow only the cheapest reachable stream from here; the rest of
		// the list is picked up again by deeper levels and by the next
		// seed.
		for _, nextRelationship := range processList {
			relationStreamInfo := ij.getStreamInfo(nextRelationship.stream)
			if relationStreamInfo.used {
				continue
			}
			if err := ij.findBestOrder(ctx, position, relationStreamInfo, processList, newCost, newCardinality); err != nil {
				return err
			}
			break
		}
	}

	if ij.plan {
		// With an explicit plan pick the next declared stream. The order
		// of innerStreams is exactly the order of the plan.
		for _, nextStream := range ij.innerStreams {
			if nextStream.used {
				continue
			}
			if err := ij.findBestOrder(ctx, position, nextStream, processList, newCost, newCardinality); err != nil {
				return err
			}
			break
		}
	}

	return nil
}

// insertRelationship inserts rel into list at its sorted position, cheapest
// first, and returns the grown list.
func insertRelationship(list []indexRelationship, rel indexRelationship) []indexRelationship {
	i := sort.Search(len(list), func(i int) bool {
		return relationshipCheaperThan(rel, list[i])
	})
	list = append(list, indexRelationship{})
	copy(list[i+1:], list[i:])
	list[i] = rel
	return list
}

// getStreamInfo returns the stream info record for the given stream id.
func (ij *InnerJoin) getStreamInfo(stream sql.StreamId) *streamInfo {
	for _, innerStream := range ij.innerStreams {
		if innerStream.stream == stream {
			return innerStream
		}
	}

	// We should never come here.
	panic(sql.ErrUnknownStream.New(stream))
}

// validateCandidate rejects probe results that break the probe contract.
func validateCandidate(stream sql.StreamId, candidate *sql.InversionCandidate) error {
	if candidate.Selectivity <= 0 || candidate.Selectivity > 1 {
		return sql.ErrInvalidSelectivity.New(candidate.Selectivity, stream)
	}
	return nil
}

func (ij *InnerJoin) logStartOrder() {
	if !ij.Debug {
		return
	}
	parts := make([]string, 0, len(ij.innerStreams))
	for _, innerStream := range ij.innerStreams {
		if !innerStream.used {
			parts = append(parts, fmt.Sprintf("%d (%.2f)", innerStream.stream, innerStream.baseCost))
		}
	}
	ij.Log("start join order, stream (baseCost): %s", strings.Join(parts, ", "))
}

func (ij *InnerJoin) logFoundOrder(position int, cost, cardinality float64) {
	if !ij.Debug {
		return
	}
	parts := make([]string, 0, position)
	for i := 0; i < position; i++ {
		parts = append(parts, fmt.Sprintf("%d", ij.joinedStreams[i].number))
	}
	ij.Log("  position %2d: cost (%10.2f), cardinality (%10.2f), streams: %s",
		position, cost, cardinality, strings.Join(parts, ", "))
}

func (ij *InnerJoin) logProcessList(processList []indexRelationship, stream sql.StreamId) {
	if !ij.Debug {
		return
	}
	parts := make([]string, 0, len(processList))
	for _, rel := range processList {
		parts = append(parts, fmt.Sprintf("%d (%.2f)", rel.stream, rel.cost))
	}
	ij.Log("   base stream %d, relationships: stream (cost): %s", stream, strings.Join(parts, ", "))
}

func (ij *InnerJoin) logBestOrder() {
	if !ij.Debug {
		return
	}
	parts := make([]string, 0, ij.bestCount)
	for i := 0; i < ij.bestCount; i++ {
		parts = append(parts, fmt.Sprintf("%d", ij.joinedStreams[i].bestStream))
	}
	ij.Log(" best order, streams: %s", strings.Join(parts, ", "))
}
