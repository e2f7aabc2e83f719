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

import "gopkg.in/src-d/go-errors.v1"

var (
	// ErrUnknownStream is thrown when a stream id is looked up that was
	// never handed to the subsystem. This error is indicative of a bug in
	// the enclosing compiler.
	ErrUnknownStream = errors.NewKind("unknown stream: %d")

	// ErrInvalidSelectivity is thrown when a retrieval probe returns a
	// selectivity outside (0, 1].
	ErrInvalidSelectivity = errors.NewKind("invalid selectivity %f for stream %d")
)
