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
	"io"
	"io/ioutil"

	"github.com/spf13/cast"
	"gopkg.in/src-d/go-errors.v1"
	yaml "gopkg.in/yaml.v2"

	"github.com/dolthub/go-joinorder/sql"
)

// ErrInvalidFixture is returned when a probe fixture file cannot be
// parsed.
var ErrInvalidFixture = errors.NewKind("invalid probe fixture: %s")

type fixture struct {
	Streams []fixtureStream `yaml:"streams"`
}

type fixtureStream struct {
	Stream      int                      `yaml:"stream"`
	Cardinality interface{}              `yaml:"cardinality"`
	Results     []map[string]interface{} `yaml:"results"`
}

// LoadFixture reads a YAML probe script and returns a scratch and probe
// populated from it. The file lists streams with their cardinalities and
// scripted probe results:
//
//	streams:
//	  - stream: 0
//	    cardinality: 1000
//	    results:
//	      - given: [1]
//	        cost: 5
//	        selectivity: 0.01
//	        unique: true
//	      - cost: 40
//	        selectivity: 0.5
func LoadFixture(r io.Reader) (*Scratch, *Probe, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}

	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, ErrInvalidFixture.New(err)
	}

	scratch := NewScratch()
	probe := NewProbe(scratch)

	for _, fs := range f.Streams {
		stream := sql.StreamId(fs.Stream)

		cardinality := 1.0
		if fs.Cardinality != nil {
			cardinality, err = cast.ToFloat64E(fs.Cardinality)
			if err != nil {
				return nil, nil, ErrInvalidFixture.New(err)
			}
		}
		scratch.AddStream(stream, cardinality)

		for _, raw := range fs.Results {
			result, err := parseResult(raw)
			if err != nil {
				return nil, nil, err
			}
			probe.Script(stream, result)
		}
	}

	return scratch, probe, nil
}

func parseResult(raw map[string]interface{}) (ProbeResult, error) {
	var result ProbeResult

	for key, value := range raw {
		var err error
		switch key {
		case "given":
			var given []int
			given, err = cast.ToIntSliceE(value)
			for _, stream := range given {
				result.Given = append(result.Given, sql.StreamId(stream))
			}
		case "cost":
			result.Cost, err = cast.ToFloat64E(value)
		case "selectivity":
			result.Selectivity, err = cast.ToFloat64E(value)
		case "unique":
			result.Unique, err = cast.ToBoolE(value)
		case "navigated":
			result.Navigated, err = cast.ToBoolE(value)
		case "indexes":
			result.Indexes, err = cast.ToIntE(value)
		default:
			return ProbeResult{}, ErrInvalidFixture.New("unknown key " + key)
		}
		if err != nil {
			return ProbeResult{}, ErrInvalidFixture.New(err)
		}
	}

	return result, nil
}
