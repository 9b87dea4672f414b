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

// PadBase is the base reported at a contig position where a read has no
// corresponding base.
const PadBase = '*'

// Strand is the orientation of a read's alignment against the contig.  It is
// not the physical strand from which the read was sequenced.
type Strand int

const (
	Forward Strand = iota
	Reverse
)

func (s Strand) String() string {
	if s == Reverse {
		return "R"
	}
	return "F"
}

// Chemistry identifies the sequencing chemistry of a read.
type Chemistry int

const (
	Unknown Chemistry = iota
	DyePrimer
	DyeTerminator
)

var chemistryNames = map[Chemistry]string{
	Unknown:       "Unknown",
	DyePrimer:     "Dye_primer",
	DyeTerminator: "Dye_terminator",
}

func (c Chemistry) String() string {
	if name, ok := chemistryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Chemistry(%d)", int(c))
}

// ParseChemistry returns the Chemistry named by s.  The empty string parses
// as Unknown.
func ParseChemistry(s string) (Chemistry, error) {
	if s == "" {
		return Unknown, nil
	}
	for c, name := range chemistryNames {
		if name == s {
			return c, nil
		}
	}
	return Unknown, fmt.Errorf("unknown chemistry %q", s)
}

// Read describes the identity of the read underlying a Mapping.
type Read struct {
	Name      string
	Clone     string
	Ligation  string
	Chemistry Chemistry
}

// Mapping is a read-only view of one read aligned to a contig.  Read offsets
// are 1-based and expressed in the read's own orientation.
//
// Implementations must not panic on out-of-range queries: Base returns '?'
// and Quality and PadQuality return -1 when there is nothing to report.
type Mapping interface {
	// ContigStart and ContigFinish return the inclusive extent of the
	// alignment on the contig.
	ContigStart() int
	ContigFinish() int

	// Forward reports whether the read is co-aligned with the contig.
	Forward() bool

	// ReadOffset maps a contig position to a read offset.  It returns false
	// when the read has no base at cpos (a pad, or outside the alignment).
	ReadOffset(cpos int) (int, bool)

	Base(offset int) byte
	Quality(offset int) int

	// PadQuality returns the quality to assign to a pad at cpos.
	PadQuality(cpos int) int

	// QualityClip returns the inclusive read-offset range outside which
	// bases must not be used.  ok is false when the read is unclipped.
	QualityClip() (left, right int, ok bool)

	// Read returns the identity of the underlying read, or nil when it is
	// not known.
	Read() *Read

	SequenceLength() int

	// Validate returns an error if the base, quality or segment data of the
	// mapping is missing, or a *BoundsError if the data is inconsistent.
	Validate() error
}

func chemistryOf(m Mapping) Chemistry {
	if read := m.Read(); read != nil {
		return read.Chemistry
	}
	return Unknown
}

func strandOf(m Mapping) Strand {
	if m.Forward() {
		return Forward
	}
	return Reverse
}
