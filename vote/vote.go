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

// Package vote provides simple consensus voters.
//
// The voters here weigh observations by base quality only; strand and
// chemistry are accepted but ignored.  They are intended as defaults and as
// references for the Voter contract, not as a replacement for a full
// Bayesian consensus model.
package vote

import (
	"fmt"
	"sort"
	"strings"

	"github.com/googlegenomics/consensus/consensus"
)

// DefaultAlgorithm is the name of the voter used when none is specified.
const DefaultAlgorithm = "quality"

// MaxScore caps the confidence reported by the voters in this package.
const MaxScore = 99

// baseOrder lists the bases a tally distinguishes, in tie-breaking order.
const baseOrder = "ACGT*N"

var factories = map[string]consensus.VoterFactory{
	"quality":  func() consensus.Voter { return &Quality{} },
	"majority": func() consensus.Voter { return &Majority{} },
}

// Lookup returns the VoterFactory registered under name.
func Lookup(name string) (consensus.VoterFactory, error) {
	if factory, ok := factories[strings.ToLower(name)]; ok {
		return factory, nil
	}
	return nil, fmt.Errorf("unknown consensus algorithm %q (known: %s)", name, strings.Join(Names(), ", "))
}

// Names returns the names of the registered voters.
func Names() []string {
	var names []string
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// tally accumulates per-base counts and quality sums for one position.
type tally struct {
	counts [len(baseOrder)]int
	sums   [len(baseOrder)]int
	reads  int
}

func (t *tally) reset() {
	*t = tally{}
}

func (t *tally) add(base byte, quality int) {
	if quality <= 0 {
		return
	}
	i := index(base)
	t.counts[i]++
	t.sums[i] += quality
	t.reads++
}

// index returns the tally slot for base.  Anything that is not a nucleotide
// or a pad counts as N.
func index(base byte) int {
	switch base {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't':
		return 3
	case consensus.PadBase:
		return 4
	}
	return 5
}

func capScore(score int) int {
	if score > MaxScore {
		return MaxScore
	}
	return score
}
