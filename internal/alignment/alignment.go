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

// Package alignment provides a segment based implementation of
// consensus.Mapping.
package alignment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/googlegenomics/consensus/consensus"
)

var _ consensus.Mapping = (*Mapping)(nil)

var (
	errMissingBases    = errors.New("missing base array")
	errMissingQuality  = errors.New("missing quality array")
	errMissingSegments = errors.New("missing segment list")
)

// Segment is an ungapped stretch of a read aligned to a contig.  ReadStart is
// the read offset aligned to ContigStart; for reverse alignments the read
// offsets decrease as the contig position increases.
type Segment struct {
	ContigStart int
	ReadStart   int
	Length      int
}

// ContigFinish returns the last contig position covered by s.
func (s Segment) ContigFinish() int {
	return s.ContigStart + s.Length - 1
}

func (s Segment) String() string {
	return fmt.Sprintf("[contig:%d-%d, read:%d, length:%d]", s.ContigStart, s.ContigFinish(), s.ReadStart, s.Length)
}

// Clip is an inclusive range of read offsets.
type Clip struct {
	Left, Right int
}

// Mapping places one read on a contig.  Bases and qualities are stored in the
// read's sequencing orientation and indexed by 1-based read offsets.
type Mapping struct {
	read     *consensus.Read
	dna      []byte
	quality  []byte
	forward  bool
	segments []Segment
	clip     *Clip

	start, finish int
}

// NewMapping returns a Mapping of read onto a contig.  read may be nil when
// the identity of the read is unknown.  dna, quality or segments may be nil,
// in which case Validate reports the mapping as incomplete.
func NewMapping(read *consensus.Read, dna, quality []byte, forward bool, segments []Segment, clip *Clip) *Mapping {
	m := &Mapping{
		read:    read,
		dna:     dna,
		quality: quality,
		forward: forward,
		clip:    clip,
	}
	if segments != nil {
		m.segments = make([]Segment, len(segments))
		copy(m.segments, segments)
		sort.Slice(m.segments, func(i, j int) bool {
			return m.segments[i].ContigStart < m.segments[j].ContigStart
		})
	}
	if len(m.segments) > 0 {
		m.start, m.finish = m.segments[0].ContigStart, m.segments[0].ContigFinish()
		for _, s := range m.segments[1:] {
			if f := s.ContigFinish(); f > m.finish {
				m.finish = f
			}
		}
	}
	return m
}

// Segments returns the segments of m ordered by contig position.
func (m *Mapping) Segments() []Segment {
	return m.segments
}

// Bases and Qualities return the read data in sequencing orientation.
func (m *Mapping) Bases() []byte     { return m.dna }
func (m *Mapping) Qualities() []byte { return m.quality }

// Clip returns the quality clip of m, or nil.
func (m *Mapping) Clip() *Clip { return m.clip }

func (m *Mapping) ContigStart() int      { return m.start }
func (m *Mapping) ContigFinish() int     { return m.finish }
func (m *Mapping) Forward() bool         { return m.forward }
func (m *Mapping) Read() *consensus.Read { return m.read }
func (m *Mapping) SequenceLength() int   { return len(m.dna) }

// Validate implements consensus.Mapping.  A segment whose read offsets
// fall outside the read is reported as a *consensus.BoundsError.
func (m *Mapping) Validate() error {
	switch {
	case m.dna == nil:
		return errMissingBases
	case m.quality == nil:
		return errMissingQuality
	case len(m.segments) == 0:
		return errMissingSegments
	case len(m.dna) != len(m.quality):
		return fmt.Errorf("%d bases but %d quality values", len(m.dna), len(m.quality))
	}
	for _, s := range m.segments {
		if s.Length < 1 {
			return fmt.Errorf("segment %v has no length", s)
		}
		if s.Length > len(m.dna) || !m.inRead(s.ReadStart) || !m.inRead(m.offsetIn(s, s.ContigFinish())) {
			return &consensus.BoundsError{
				Mapping:  -1,
				Position: s.ContigStart,
				Reason:   fmt.Sprintf("segment %v does not fit a read of length %d", s, len(m.dna)),
			}
		}
	}
	return nil
}

func (m *Mapping) inRead(offset int) bool {
	return offset >= 1 && offset <= len(m.dna)
}

// segmentAt returns the index of the last segment starting at or before cpos,
// or -1.
func (m *Mapping) segmentAt(cpos int) int {
	return sort.Search(len(m.segments), func(i int) bool {
		return m.segments[i].ContigStart > cpos
	}) - 1
}

// offsetIn returns the read offset aligned to cpos within s.
func (m *Mapping) offsetIn(s Segment, cpos int) int {
	if m.forward {
		return s.ReadStart + (cpos - s.ContigStart)
	}
	return s.ReadStart - (cpos - s.ContigStart)
}

// ReadOffset implements consensus.Mapping.
func (m *Mapping) ReadOffset(cpos int) (int, bool) {
	if cpos < m.start || cpos > m.finish {
		return 0, false
	}
	i := m.segmentAt(cpos)
	if i < 0 || cpos > m.segments[i].ContigFinish() {
		return 0, false
	}
	return m.offsetIn(m.segments[i], cpos), true
}

// Base implements consensus.Mapping.  Bases of reverse alignments are
// complemented.
func (m *Mapping) Base(offset int) byte {
	if offset < 1 || offset > len(m.dna) {
		return '?'
	}
	base := m.dna[offset-1]
	if !m.forward {
		base = complement(base)
	}
	return base
}

// Quality implements consensus.Mapping.
func (m *Mapping) Quality(offset int) int {
	if offset < 1 || offset > len(m.quality) {
		return -1
	}
	return int(m.quality[offset-1])
}

// PadQuality implements consensus.Mapping.  The quality of a pad is
// interpolated between the qualities of the bases on either side of the gap.
func (m *Mapping) PadQuality(cpos int) int {
	if cpos <= m.start || cpos >= m.finish || len(m.segments) < 2 {
		return -1
	}
	i := m.segmentAt(cpos)
	if i < 0 || i+1 >= len(m.segments) {
		return -1
	}
	left, right := m.segments[i], m.segments[i+1]
	cleft, cright := left.ContigFinish(), right.ContigStart
	if cpos <= cleft || cpos >= cright {
		return -1
	}

	qleft := m.Quality(m.offsetIn(left, cleft))
	qright := m.Quality(m.offsetIn(right, cright))
	if qleft < 0 || qright < 0 {
		return -1
	}
	return qleft + ((qright-qleft)*(cpos-cleft))/(cright-cleft)
}

// QualityClip implements consensus.Mapping.
func (m *Mapping) QualityClip() (int, int, bool) {
	if m.clip == nil {
		return 0, 0, false
	}
	return m.clip.Left, m.clip.Right, true
}

func (m *Mapping) String() string {
	name := "?"
	if m.read != nil {
		name = m.read.Name
	}
	direction := "forward"
	if !m.forward {
		direction = "reverse"
	}
	return fmt.Sprintf("[mapping:%s, contig:%d-%d, %s, segments:%d]", name, m.start, m.finish, direction, len(m.segments))
}

func complement(base byte) byte {
	switch base {
	case 'A':
		return 'T'
	case 'C':
		return 'G'
	case 'G':
		return 'C'
	case 'T':
		return 'A'
	case 'a':
		return 't'
	case 'c':
		return 'g'
	case 'g':
		return 'c'
	case 't':
		return 'a'
	}
	return base
}
