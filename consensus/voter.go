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

// Voter accumulates the observations for a single contig position and calls
// the best base.  A Voter carries mutable state and must not be shared
// between concurrent sweeps.
type Voter interface {
	// Reset clears all accumulated observations.  It is safe to call before
	// the first use and more than once.
	Reset()

	// AddBase records one observation.  Observations with quality <= 0 are
	// ignored.
	AddBase(base byte, quality int, strand Strand, chemistry Chemistry)

	// BestBase and BestScore are only meaningful when ReadCount is
	// positive.
	BestBase() byte
	BestScore() int
	ReadCount() int
}

// VoterFactory returns a fresh Voter.
type VoterFactory func() Voter

// Checked wraps v so that querying BestBase or BestScore without any
// observations panics with ErrVoterUnderflow instead of returning the
// voter's sentinel.
func Checked(v Voter) Voter {
	return checkedVoter{v}
}

type checkedVoter struct {
	Voter
}

func (v checkedVoter) BestBase() byte {
	if v.ReadCount() == 0 {
		panic(ErrVoterUnderflow)
	}
	return v.Voter.BestBase()
}

func (v checkedVoter) BestScore() int {
	if v.ReadCount() == 0 {
		panic(ErrVoterUnderflow)
	}
	return v.Voter.BestScore()
}
