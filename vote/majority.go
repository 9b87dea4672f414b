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

// Majority calls the most frequently observed base, breaking ties on the
// quality sum.  Its score is the mean quality of the winning base.
type Majority struct {
	tally
}

func (v *Majority) Reset() {
	v.reset()
}

func (v *Majority) AddBase(base byte, quality int, _ consensus.Strand, _ consensus.Chemistry) {
	v.add(base, quality)
}

func (v *Majority) BestBase() byte {
	if best := v.best(); best >= 0 {
		return baseOrder[best]
	}
	return consensus.NoCallBase
}

func (v *Majority) BestScore() int {
	best := v.best()
	if best < 0 {
		return 0
	}
	return capScore(v.sums[best] / v.counts[best])
}

func (v *Majority) ReadCount() int {
	return v.reads
}

func (v *Majority) best() int {
	best := -1
	for i, n := range v.counts {
		if n == 0 {
			continue
		}
		if best < 0 || n > v.counts[best] || (n == v.counts[best] && v.sums[i] > v.sums[best]) {
			best = i
		}
	}
	return best
}
