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
	"errors"
	"fmt"
	"sort"
)

// entry caches the per-sweep facts about one mapping so that they are
// computed once per contig rather than once per position.
type entry struct {
	Mapping

	index         int
	start, finish int
	length        int
	strand        Strand
	chemistry     Chemistry
	group         int // index of the owning read group, or -1

	clipped             bool
	clipLeft, clipRight int
}

func newEntry(index int, m Mapping) *entry {
	e := &entry{
		Mapping:   m,
		index:     index,
		start:     m.ContigStart(),
		finish:    m.ContigFinish(),
		length:    m.SequenceLength(),
		strand:    strandOf(m),
		chemistry: chemistryOf(m),
		group:     -1,
	}
	e.clipLeft, e.clipRight, e.clipped = m.QualityClip()
	return e
}

func (e *entry) contains(cpos int) bool {
	return e.start <= cpos && cpos <= e.finish
}

// observe returns the base and quality that e contributes at cpos.  ok is
// false when the observation must be skipped.
func (e *entry) observe(cpos int) (base byte, quality int, ok bool, err error) {
	offset, present := e.ReadOffset(cpos)
	if !present {
		if quality = e.PadQuality(cpos); quality <= 0 {
			return 0, 0, false, nil
		}
		return PadBase, quality, true, nil
	}

	if offset < 1 || offset > e.length {
		return 0, 0, false, &BoundsError{
			Mapping:  e.index,
			Position: cpos,
			Reason:   fmt.Sprintf("read offset %d outside read of length %d", offset, e.length),
		}
	}

	if quality = e.Quality(offset); quality <= 0 {
		return 0, 0, false, nil
	}
	if e.clipped && (offset < e.clipLeft || offset > e.clipRight) {
		return 0, 0, false, nil
	}
	return e.Base(offset), quality, true, nil
}

// sweep walks a window over the normal mappings of one contig.  The oversized
// mappings are considered at every position.
type sweep struct {
	normal    []*entry
	oversized []*entry

	start, finish int
	left, right   int

	active   []*entry
	maxDepth int
}

func newSweep(mappings []Mapping, config Config) (*sweep, error) {
	if len(mappings) == 0 {
		return nil, ErrNoMappings
	}
	config = config.withDefaults()
	for i, m := range mappings {
		if err := m.Validate(); err != nil {
			var bounds *BoundsError
			if errors.As(err, &bounds) {
				indexed := *bounds
				indexed.Mapping = i
				return nil, &indexed
			}
			return nil, &IncompleteDataError{Mapping: i, Cause: err}
		}
	}

	s := &sweep{right: -1}
	for i, m := range mappings {
		e := newEntry(i, m)
		if e.start > e.finish {
			return nil, &BoundsError{
				Mapping:  i,
				Position: e.start,
				Reason:   fmt.Sprintf("contig start %d after contig finish %d", e.start, e.finish),
			}
		}
		for _, cpos := range []int{e.start, e.finish} {
			if offset, ok := e.ReadOffset(cpos); !ok || offset < 1 || offset > e.length {
				return nil, &BoundsError{
					Mapping:  i,
					Position: cpos,
					Reason:   fmt.Sprintf("end of mapping is not aligned within a read of length %d", e.length),
				}
			}
		}

		if i == 0 || e.start < s.start {
			s.start = e.start
		}
		if i == 0 || e.finish > s.finish {
			s.finish = e.finish
		}

		if e.length > config.MaxNormalReadLength {
			s.oversized = append(s.oversized, e)
		} else {
			s.normal = append(s.normal, e)
		}
	}

	// The difference is exact in uint64 whatever the sign of the positions.
	if span := uint64(s.finish) - uint64(s.start); span >= uint64(config.MaxContigLength) {
		return nil, &BoundsError{
			Mapping:  -1,
			Position: s.finish,
			Reason:   fmt.Sprintf("contig spans %d-%d, longer than %d positions", s.start, s.finish, config.MaxContigLength),
		}
	}

	sort.SliceStable(s.normal, func(i, j int) bool {
		return s.normal[i].start < s.normal[j].start
	})
	return s, nil
}

// classify assigns each mapping to the first group it belongs to and returns
// the number of mappings owned by each group.
func (s *sweep) classify(groups []ReadGroup) []int {
	counts := make([]int, len(groups))
	for _, list := range [][]*entry{s.normal, s.oversized} {
		for _, e := range list {
			for i, group := range groups {
				if group.BelongsTo(e.Mapping) {
					e.group = i
					counts[i]++
					break
				}
			}
		}
	}
	return counts
}

// advance moves the window so that it covers cpos.  Positions must be
// visited in ascending order.
func (s *sweep) advance(cpos int) {
	for s.left < len(s.normal) && s.normal[s.left].finish < cpos {
		s.left++
	}
	for s.right+1 < len(s.normal) && s.normal[s.right+1].start <= cpos {
		s.right++
	}
}

// activeAt returns the mappings that cover cpos.  The result is only valid
// until the next call.
func (s *sweep) activeAt(cpos int) []*entry {
	s.active = s.active[:0]
	if s.left <= s.right {
		for _, e := range s.normal[s.left : s.right+1] {
			// The window is ordered by start, so a short read may end before a
			// longer read that started earlier.
			if e.finish >= cpos {
				s.active = append(s.active, e)
			}
		}
	}
	for _, e := range s.oversized {
		if e.contains(cpos) {
			s.active = append(s.active, e)
		}
	}
	if len(s.active) > s.maxDepth {
		s.maxDepth = len(s.active)
	}
	return s.active
}

// run sweeps every position of the contig.  Each observation goes to def and,
// when its mapping is grouped, to the group's voter; with exclusive set,
// grouped observations bypass def.  visit is called once the voters hold all
// of the observations for cpos.
func (s *sweep) run(def Voter, groups []Voter, exclusive bool, visit func(cpos int) error) error {
	for cpos := s.start; cpos <= s.finish; cpos++ {
		s.advance(cpos)

		def.Reset()
		for _, v := range groups {
			v.Reset()
		}

		for _, e := range s.activeAt(cpos) {
			base, quality, ok, err := e.observe(cpos)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if e.group >= 0 {
				groups[e.group].AddBase(base, quality, e.strand, e.chemistry)
				if exclusive {
					continue
				}
			}
			def.AddBase(base, quality, e.strand, e.chemistry)
		}

		if err := visit(cpos); err != nil {
			return err
		}
	}
	return nil
}
