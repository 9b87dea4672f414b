// Copyright 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package contig

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/googlegenomics/consensus/consensus"
	"github.com/googlegenomics/consensus/internal/alignment"
)

const sample = `{
  "id": 7,
  "name": "Contig7",
  "mappings": [
    {
      "read": {"name": "r1.p1k", "clone": "bA1", "chemistry": "Dye_terminator"},
      "forward": true,
      "sequence": "ACGTT",
      "quality": [30, 30, 30, 30, 30],
      "segments": [{"contig_start": 100, "read_start": 1, "length": 2}, {"contig_start": 103, "read_start": 3, "length": 3}],
      "clip": {"left": 1, "right": 4}
    },
    {
      "forward": false,
      "sequence": "GG",
      "quality": [20, 20],
      "segments": [{"contig_start": 101, "read_start": 2, "length": 2}]
    }
  ]
}`

func TestDecode(t *testing.T) {
	c, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got, want := c.ID, 7; got != want {
		t.Errorf("Wrong id: got %d, want %d", got, want)
	}
	if got, want := c.Name, "Contig7"; got != want {
		t.Errorf("Wrong name: got %q, want %q", got, want)
	}
	if got, want := len(c.Mappings), 2; got != want {
		t.Fatalf("Wrong number of mappings: got %d, want %d", got, want)
	}

	first := c.Mappings[0]
	if got, want := first.Read(), (&consensus.Read{Name: "r1.p1k", Clone: "bA1", Chemistry: consensus.DyeTerminator}); !reflect.DeepEqual(got, want) {
		t.Errorf("Wrong read: got %+v, want %+v", got, want)
	}
	if got, want := first.ContigFinish(), 105; got != want {
		t.Errorf("Wrong finish: got %d, want %d", got, want)
	}
	if got, want := first.Clip(), (&alignment.Clip{Left: 1, Right: 4}); !reflect.DeepEqual(got, want) {
		t.Errorf("Wrong clip: got %v, want %v", got, want)
	}
	if c.Mappings[1].Read() != nil {
		t.Errorf("Unexpected read for anonymous mapping: %+v", c.Mappings[1].Read())
	}
	if got, want := len(c.Intervals()), 2; got != want {
		t.Errorf("Wrong number of intervals: got %d, want %d", got, want)
	}
}

func TestEncodeDecode(t *testing.T) {
	c, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, c); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	again, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode of encoded contig failed: %v", err)
	}
	if !reflect.DeepEqual(c, again) {
		t.Errorf("Contig changed by encoding: got %v, want %v", again, c)
	}
}

func TestDecodeIncomplete(t *testing.T) {
	const missingQuality = `{"id": 1, "mappings": [{"forward": true, "sequence": "AC", "segments": [{"contig_start": 1, "read_start": 1, "length": 2}]}]}`
	c, err := Decode(strings.NewReader(missingQuality))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	engine := consensus.NewEngine(func() consensus.Voter { return &countingVoter{} }, consensus.Config{})
	if _, err := engine.Calculate(c.Intervals()); !errors.Is(err, consensus.ErrIncompleteAlignmentData) {
		t.Errorf("Wrong error: got %v, want %v", err, consensus.ErrIncompleteAlignmentData)
	}
}

func TestDecodeErrors(t *testing.T) {
	testCases := []struct{ name, input string }{
		{"not json", `contig`},
		{"quality out of range", `{"mappings": [{"sequence": "A", "quality": [256]}]}`},
		{"negative quality", `{"mappings": [{"sequence": "A", "quality": [-1]}]}`},
		{"unknown chemistry", `{"mappings": [{"read": {"name": "r", "chemistry": "Sanger"}}]}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(tc.input)); err == nil {
				t.Error("Decode succeeded, expected an error")
			}
		})
	}
}

type countingVoter struct{ reads int }

func (v *countingVoter) Reset()                                                   { v.reads = 0 }
func (v *countingVoter) AddBase(byte, int, consensus.Strand, consensus.Chemistry) { v.reads++ }
func (v *countingVoter) BestBase() byte                                           { return 'A' }
func (v *countingVoter) BestScore() int                                           { return v.reads }
func (v *countingVoter) ReadCount() int                                           { return v.reads }
