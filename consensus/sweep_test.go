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

package consensus

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"
)

// randomMappings returns n mappings with random extents and lengths, some of
// them longer than maxNormal.
func randomMappings(rng *rand.Rand, n, maxNormal int) []Mapping {
	var out []Mapping
	for i := 0; i < n; i++ {
		length := 1 + rng.Intn(maxNormal)
		if rng.Intn(10) == 0 {
			length = maxNormal + 1 + rng.Intn(maxNormal)
		}
		out = append(out, uniform(rng.Intn(200)-50, length, 'A', 30))
	}
	return out
}

func TestSweep_WindowIsMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		s, err := newSweep(randomMappings(rng, 40, 30), Config{MaxNormalReadLength: 30})
		if err != nil {
			t.Fatalf("newSweep failed: %v", err)
		}

		left, right := s.left, s.right
		for cpos := s.start; cpos <= s.finish; cpos++ {
			s.advance(cpos)
			if s.left < left || s.right < right {
				t.Fatalf("Trial %d, position %d: window regressed from [%d, %d] to [%d, %d]",
					trial, cpos, left, right, s.left, s.right)
			}
			left, right = s.left, s.right
		}
	}
}

func TestSweep_CoverageIsComplete(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for trial := 0; trial < 20; trial++ {
		input := randomMappings(rng, 40, 30)
		s, err := newSweep(input, Config{MaxNormalReadLength: 30})
		if err != nil {
			t.Fatalf("newSweep failed: %v", err)
		}

		for cpos := s.start; cpos <= s.finish; cpos++ {
			s.advance(cpos)

			got := []int{}
			for _, e := range s.activeAt(cpos) {
				got = append(got, e.index)
			}
			sort.Ints(got)

			want := []int{}
			for i, m := range input {
				if m.ContigStart() <= cpos && cpos <= m.ContigFinish() {
					want = append(want, i)
				}
			}

			if !reflect.DeepEqual(got, want) {
				t.Fatalf("Trial %d, position %d: got mappings %v, want %v", trial, cpos, got, want)
			}
		}
	}
}

func TestSweep_Partition(t *testing.T) {
	s, err := newSweep(mappings(
		uniform(30, 5, 'A', 30),
		uniform(10, 11, 'A', 30),
		uniform(20, 10, 'A', 30),
		uniform(10, 3, 'A', 30),
	), Config{MaxNormalReadLength: 10})
	if err != nil {
		t.Fatalf("newSweep failed: %v", err)
	}

	if got, want := s.start, 10; got != want {
		t.Errorf("Wrong start: got %d, want %d", got, want)
	}
	if got, want := s.finish, 34; got != want {
		t.Errorf("Wrong finish: got %d, want %d", got, want)
	}

	var normal []int
	for _, e := range s.normal {
		normal = append(normal, e.index)
	}
	if got, want := normal, []int{3, 2, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("Wrong normal order: got %v, want %v", got, want)
	}
	if got, want := len(s.oversized), 1; got != want {
		t.Fatalf("Wrong oversized count: got %d, want %d", got, want)
	}
	if got, want := s.oversized[0].index, 1; got != want {
		t.Errorf("Wrong oversized mapping: got %d, want %d", got, want)
	}
}

func TestSweep_Classify(t *testing.T) {
	withClone := func(clone string) *fakeMapping {
		m := forward(1, "A", 30)
		m.read = &Read{Name: clone + "-read", Clone: clone}
		return m
	}

	s, err := newSweep(mappings(withClone("a"), withClone("b"), withClone("c"), forward(1, "A", 30), withClone("a")), Config{MaxNormalReadLength: 10})
	if err != nil {
		t.Fatalf("newSweep failed: %v", err)
	}

	counts := s.classify([]ReadGroup{cloneGroup("a"), cloneGroup("b"), cloneGroup("a")})
	if got, want := counts, []int{2, 1, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("Wrong group sizes: got %v, want %v", got, want)
	}

	var groups []int
	for _, e := range s.normal {
		groups = append(groups, e.group)
	}
	if got, want := groups, []int{0, 1, -1, -1, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("Wrong group assignment: got %v, want %v", got, want)
	}
}
