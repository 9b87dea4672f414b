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

import "fmt"

// ReadGroup is a named partition of reads, for example all the reads from one
// clone.  BelongsTo must depend only on the identity of the read and never on
// its sequence, so that membership is the same at every position.
type ReadGroup interface {
	Name() string
	BelongsTo(m Mapping) bool
}

// Divergence records a position at which the call made from one read group
// differs from the default call.
type Divergence struct {
	Position int

	DefaultBase  byte
	DefaultScore int
	DefaultReads int

	Group      int
	GroupName  string
	GroupBase  byte
	GroupScore int
	GroupReads int
}

func (d Divergence) String() string {
	return fmt.Sprintf("%d\t%c (Q=%d, N=%d)\t%s\t%c (Q=%d, N=%d)",
		d.Position, d.DefaultBase, d.DefaultScore, d.DefaultReads,
		d.GroupName, d.GroupBase, d.GroupScore, d.GroupReads)
}

// DifferentialResult is the outcome of a differential pass over one contig.
type DifferentialResult struct {
	Start, Finish int

	// GroupReads holds the number of mappings owned by each group.
	GroupReads []int

	Divergences []Divergence
}

// Differential sweeps the contig made up of mappings with one voter per read
// group in addition to the default voter, and reports every position at which
// a group calls a different base from the default.
//
// Each mapping is owned by the first group, in order, that it belongs to.
// Mappings owned by no group only contribute to the default voter.
func (e *Engine) Differential(mappings []Mapping, groups []ReadGroup) (*DifferentialResult, error) {
	s, err := newSweep(mappings, e.config)
	if err != nil {
		return nil, err
	}

	result := &DifferentialResult{
		Start:      s.start,
		Finish:     s.finish,
		GroupReads: s.classify(groups),
	}

	def := e.newVoter()
	voters := make([]Voter, len(groups))
	for i := range voters {
		voters[i] = e.newVoter()
	}

	err = s.run(def, voters, e.config.ExclusiveGroups, func(cpos int) error {
		defaultReads := def.ReadCount()
		if defaultReads == 0 {
			return nil
		}
		defaultBase, defaultScore := def.BestBase(), def.BestScore()

		for i, v := range voters {
			n := v.ReadCount()
			if n == 0 {
				continue
			}
			if base := v.BestBase(); base != defaultBase {
				result.Divergences = append(result.Divergences, Divergence{
					Position:     cpos,
					DefaultBase:  defaultBase,
					DefaultScore: defaultScore,
					DefaultReads: defaultReads,
					Group:        i,
					GroupName:    groups[i].Name(),
					GroupBase:    base,
					GroupScore:   v.BestScore(),
					GroupReads:   n,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
