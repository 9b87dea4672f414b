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

// fakeMapping is an ungapped-by-default Mapping over an in-memory read.
// Positions listed in pads have no base and report the mapped pad quality.
type fakeMapping struct {
	start   int
	bases   string // in read orientation
	quality []int
	reverse bool
	pads    map[int]int
	clip    *[2]int
	read    *Read
	invalid error
	shift   int // added to every read offset, to simulate a broken mapping
}

func forward(start int, bases string, quality ...int) *fakeMapping {
	return &fakeMapping{start: start, bases: bases, quality: quality}
}

func reverse(start int, bases string, quality ...int) *fakeMapping {
	return &fakeMapping{start: start, bases: bases, quality: quality, reverse: true}
}

// uniform returns a forward mapping of n copies of base, all with quality q.
func uniform(start, n int, base byte, q int) *fakeMapping {
	bases := make([]byte, n)
	quality := make([]int, n)
	for i := range bases {
		bases[i], quality[i] = base, q
	}
	return forward(start, string(bases), quality...)
}

func (m *fakeMapping) ContigStart() int  { return m.start }
func (m *fakeMapping) ContigFinish() int { return m.start + len(m.bases) + len(m.pads) - 1 }
func (m *fakeMapping) Forward() bool     { return !m.reverse }
func (m *fakeMapping) Read() *Read       { return m.read }
func (m *fakeMapping) Validate() error   { return m.invalid }

func (m *fakeMapping) SequenceLength() int { return len(m.bases) }

func (m *fakeMapping) ReadOffset(cpos int) (int, bool) {
	if cpos < m.start || cpos > m.ContigFinish() {
		return 0, false
	}
	if _, ok := m.pads[cpos]; ok {
		return 0, false
	}
	k := cpos - m.start
	for p := range m.pads {
		if p < cpos {
			k--
		}
	}
	if m.reverse {
		return len(m.bases) - k + m.shift, true
	}
	return k + 1 + m.shift, true
}

func (m *fakeMapping) Base(offset int) byte {
	if offset < 1 || offset > len(m.bases) {
		return '?'
	}
	b := m.bases[offset-1]
	if m.reverse {
		switch b {
		case 'A':
			return 'T'
		case 'C':
			return 'G'
		case 'G':
			return 'C'
		case 'T':
			return 'A'
		}
	}
	return b
}

func (m *fakeMapping) Quality(offset int) int {
	if offset < 1 || offset > len(m.quality) {
		return -1
	}
	return m.quality[offset-1]
}

func (m *fakeMapping) PadQuality(cpos int) int {
	if q, ok := m.pads[cpos]; ok {
		return q
	}
	return -1
}

func (m *fakeMapping) QualityClip() (int, int, bool) {
	if m.clip == nil {
		return 0, 0, false
	}
	return m.clip[0], m.clip[1], true
}

type observation struct {
	base      byte
	quality   int
	strand    Strand
	chemistry Chemistry
}

// recordingVoter keeps every observation it is given and calls the most
// frequent base, preferring the base seen first on ties.
type recordingVoter struct {
	started bool
	current []observation
	history [][]observation
}

func (v *recordingVoter) Reset() {
	if v.started {
		v.history = append(v.history, v.current)
	}
	v.started = true
	v.current = nil
}

func (v *recordingVoter) AddBase(base byte, quality int, strand Strand, chemistry Chemistry) {
	if quality <= 0 {
		return
	}
	v.current = append(v.current, observation{base, quality, strand, chemistry})
}

func (v *recordingVoter) BestBase() byte {
	base, _ := v.best()
	return base
}

func (v *recordingVoter) BestScore() int {
	_, score := v.best()
	return score
}

func (v *recordingVoter) ReadCount() int {
	return len(v.current)
}

func (v *recordingVoter) best() (byte, int) {
	counts := make(map[byte]int)
	scores := make(map[byte]int)
	var best byte
	for _, o := range v.current {
		counts[o.base]++
		scores[o.base] += o.quality
		if best == 0 || counts[o.base] > counts[best] {
			best = o.base
		}
	}
	return best, scores[best]
}

// positions returns the observations made at every position of the sweep.
func (v *recordingVoter) positions() [][]observation {
	return append(v.history, v.current)
}

// recorder is a VoterFactory that remembers the voters it created.
type recorder struct {
	voters []*recordingVoter
}

func (r *recorder) newVoter() Voter {
	v := &recordingVoter{}
	r.voters = append(r.voters, v)
	return v
}

type cloneGroup string

func (g cloneGroup) Name() string { return string(g) }

func (g cloneGroup) BelongsTo(m Mapping) bool {
	read := m.Read()
	return read != nil && read.Clone == string(g)
}

func mappings(ms ...*fakeMapping) []Mapping {
	out := make([]Mapping, len(ms))
	for i, m := range ms {
		out[i] = m
	}
	return out
}
