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

package vote

import "github.com/googlegenomics/consensus/consensus"

// Quality calls the base with the largest quality sum.  Its score is the
// margin between the best and the second best sums.  With no observations
// it reports consensus.NoCallBase and a score of zero.
type Quality struct {
	tally
}

func (v *Quality) Reset() {
	v.reset()
}

func (v *Quality) AddBase(base byte, quality int, _ consensus.Strand, _ consensus.Chemistry) {
	v.add(base, quality)
}

func (v *Quality) BestBase() byte {
	best, _ := v.rank()
	if best < 0 {
		return consensus.NoCallBase
	}
	return baseOrder[best]
}

func (v *Quality) BestScore() int {
	best, second := v.rank()
	if best < 0 {
		return 0
	}
	margin := v.sums[best]
	if second >= 0 {
		margin -= v.sums[second]
	}
	return capScore(margin)
}

func (v *Quality) ReadCount() int {
	return v.reads
}

// rank returns the slots with the largest and second largest quality sums,
// or -1 where there is no such slot.
func (v *Quality) rank() (best, second int) {
	best, second = -1, -1
	for i, sum := range v.sums {
		if v.counts[i] == 0 {
			continue
		}
		switch {
		case best < 0 || sum > v.sums[best]:
			best, second = i, best
		case second < 0 || sum > v.sums[second]:
			second = i
		}
	}
	return best, second
}
