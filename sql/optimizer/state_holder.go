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

import "github.com/dolthub/go-joinorder/sql"

// streamStateHolder captures the active bits of a set of streams in the
// compiler scratch so they can be forced active for the duration of a
// phase and restored afterwards. Release must run on every exit path,
// normal or error; callers defer it immediately after activate.
type streamStateHolder struct {
	scratch  sql.CompilerScratch
	streams  []sql.StreamId
	previous []bool
}

func newStreamStateHolder(scratch sql.CompilerScratch, streams []sql.StreamId) *streamStateHolder {
	h := &streamStateHolder{
		scratch:  scratch,
		streams:  streams,
		previous: make([]bool, len(streams)),
	}
	for i, stream := range streams {
		h.previous[i] = scratch.Active(stream)
	}
	return h
}

// activate forces every captured stream active.
func (h *streamStateHolder) activate() {
	for _, stream := range h.streams {
		h.scratch.Activate(stream)
	}
}

// release restores the active bits captured at construction.
func (h *streamStateHolder) release() {
	for i, stream := range h.streams {
		if !h.previous[i] {
			h.scratch.Deactivate(stream)
		}
	}
}
