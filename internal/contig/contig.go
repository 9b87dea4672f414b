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

// Package contig defines a contig together with the read mappings placed on
// it, and its JSON wire format.
package contig

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/googlegenomics/consensus/consensus"
	"github.com/googlegenomics/consensus/internal/alignment"
)

// Contig is an assembled region and the reads aligned to it.
type Contig struct {
	ID       int
	Name     string
	Mappings []*alignment.Mapping

	// Source names the input the contig was read from.  IDs are only unique
	// within one source.  It is not part of the wire format.
	Source string
}

// Intervals returns the mappings of c as engine input.
func (c *Contig) Intervals() []consensus.Mapping {
	mappings := make([]consensus.Mapping, len(c.Mappings))
	for i, m := range c.Mappings {
		mappings[i] = m
	}
	return mappings
}

func (c *Contig) String() string {
	return fmt.Sprintf("[contig:%d, name:%s, reads:%d]", c.ID, c.Name, len(c.Mappings))
}

type wireContig struct {
	ID       int           `json:"id"`
	Name     string        `json:"name,omitempty"`
	Mappings []wireMapping `json:"mappings"`
}

type wireRead struct {
	Name      string `json:"name"`
	Clone     string `json:"clone,omitempty"`
	Ligation  string `json:"ligation,omitempty"`
	Chemistry string `json:"chemistry,omitempty"`
}

type wireSegment struct {
	ContigStart int `json:"contig_start"`
	ReadStart   int `json:"read_start"`
	Length      int `json:"length"`
}

type wireClip struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

type wireMapping struct {
	Read     *wireRead     `json:"read,omitempty"`
	Forward  bool          `json:"forward"`
	Sequence string        `json:"sequence,omitempty"`
	Quality  []int         `json:"quality"`
	Segments []wireSegment `json:"segments"`
	Clip     *wireClip     `json:"clip,omitempty"`
}

// Decode reads one JSON encoded contig from r.  Missing sequence, quality or
// segment data is preserved so that the engine can reject the contig as
// incomplete.
func Decode(r io.Reader) (*Contig, error) {
	var wire wireContig
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding contig: %v", err)
	}

	c := &Contig{
		ID:       wire.ID,
		Name:     wire.Name,
		Mappings: make([]*alignment.Mapping, len(wire.Mappings)),
	}
	for i, wm := range wire.Mappings {
		m, err := wm.mapping()
		if err != nil {
			return nil, fmt.Errorf("decoding mapping %d of contig %d: %v", i, wire.ID, err)
		}
		c.Mappings[i] = m
	}
	return c, nil
}

func (wm *wireMapping) mapping() (*alignment.Mapping, error) {
	var read *consensus.Read
	if wm.Read != nil {
		chemistry, err := consensus.ParseChemistry(wm.Read.Chemistry)
		if err != nil {
			return nil, err
		}
		read = &consensus.Read{
			Name:      wm.Read.Name,
			Clone:     wm.Read.Clone,
			Ligation:  wm.Read.Ligation,
			Chemistry: chemistry,
		}
	}

	var dna []byte
	if wm.Sequence != "" {
		dna = []byte(wm.Sequence)
	}

	var quality []byte
	if wm.Quality != nil {
		quality = make([]byte, len(wm.Quality))
		for i, q := range wm.Quality {
			if q < 0 || q > 255 {
				return nil, fmt.Errorf("quality %d at offset %d out of range", q, i+1)
			}
			quality[i] = byte(q)
		}
	}

	var segments []alignment.Segment
	if wm.Segments != nil {
		segments = make([]alignment.Segment, len(wm.Segments))
		for i, s := range wm.Segments {
			segments[i] = alignment.Segment{ContigStart: s.ContigStart, ReadStart: s.ReadStart, Length: s.Length}
		}
	}

	var clip *alignment.Clip
	if wm.Clip != nil {
		clip = &alignment.Clip{Left: wm.Clip.Left, Right: wm.Clip.Right}
	}
	return alignment.NewMapping(read, dna, quality, wm.Forward, segments, clip), nil
}

// Encode writes c to w in the format read by Decode.
func Encode(w io.Writer, c *Contig) error {
	wire := wireContig{
		ID:       c.ID,
		Name:     c.Name,
		Mappings: make([]wireMapping, len(c.Mappings)),
	}
	for i, m := range c.Mappings {
		wm := wireMapping{
			Forward:  m.Forward(),
			Sequence: string(m.Bases()),
		}
		if read := m.Read(); read != nil {
			wm.Read = &wireRead{
				Name:     read.Name,
				Clone:    read.Clone,
				Ligation: read.Ligation,
			}
			if read.Chemistry != consensus.Unknown {
				wm.Read.Chemistry = read.Chemistry.String()
			}
		}
		if q := m.Qualities(); q != nil {
			wm.Quality = make([]int, len(q))
			for j, v := range q {
				wm.Quality[j] = int(v)
			}
		}
		for _, s := range m.Segments() {
			wm.Segments = append(wm.Segments, wireSegment{s.ContigStart, s.ReadStart, s.Length})
		}
		if clip := m.Clip(); clip != nil {
			wm.Clip = &wireClip{clip.Left, clip.Right}
		}
		wire.Mappings[i] = wm
	}
	return json.NewEncoder(w).Encode(&wire)
}
