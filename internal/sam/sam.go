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

// Package sam provides support for reading contigs from SAM files.
package sam

import (
	"fmt"
	"io"
	"strings"

	hts "github.com/biogo/hts/sam"

	"github.com/googlegenomics/consensus/consensus"
	"github.com/googlegenomics/consensus/internal/alignment"
	"github.com/googlegenomics/consensus/internal/contig"
)

var (
	aliasTag     = hts.NewTag("AN")
	sampleTag    = hts.NewTag("SM")
	readGroupTag = []byte("RG")
	chemistryTag = []byte("ch")
)

// Header holds the reference sequences and read groups declared by a SAM
// file.
type Header struct {
	*hts.Header
}

// ReferenceID returns the index of the reference named (or aliased) by name.
func (h *Header) ReferenceID(name string) (int, error) {
	for i, ref := range h.Refs() {
		if ref.Name() == name {
			return i, nil
		}
		if aliases := ref.Get(aliasTag); aliases != "" {
			for _, alias := range strings.Split(aliases, ",") {
				if alias == name {
					return i, nil
				}
			}
		}
	}
	return 0, fmt.Errorf("reference %q not found", name)
}

// readGroup returns the @RG header line with the given ID.
func (h *Header) readGroup(id string) (*hts.ReadGroup, bool) {
	for _, rg := range h.RGs() {
		if rg.Name() == id {
			return rg, true
		}
	}
	return nil, false
}

// ReadContigs reads a SAM file and returns one contig per reference that has
// at least one mapped record, in header order.  Contig IDs are the 1-based
// positions of the references in the header.  Unmapped and secondary
// records are skipped.
func ReadContigs(r io.Reader) (*Header, []*contig.Contig, error) {
	reader, err := hts.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading SAM header: %v", err)
	}
	header := &Header{reader.Header()}
	contigs := make(map[int]*contig.Contig)

	for n := 1; ; n++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("record %d: %v", n, err)
		}
		if rec.Flags&(hts.Unmapped|hts.Secondary) != 0 || rec.Ref == nil {
			continue
		}
		id, err := header.ReferenceID(rec.Ref.Name())
		if err != nil {
			return nil, nil, fmt.Errorf("record %d: %v", n, err)
		}
		m, err := header.mapping(rec)
		if err != nil {
			return nil, nil, fmt.Errorf("record %d: read %s: %v", n, rec.Name, err)
		}
		c, ok := contigs[id]
		if !ok {
			c = &contig.Contig{ID: id + 1, Name: rec.Ref.Name()}
			contigs[id] = c
		}
		c.Mappings = append(c.Mappings, m)
	}

	var result []*contig.Contig
	for id := range header.Refs() {
		if c, ok := contigs[id]; ok {
			result = append(result, c)
		}
	}
	return header, result, nil
}

// stringTag returns the value of a Z typed aux field of rec.
func stringTag(rec *hts.Record, tag []byte) (string, bool, error) {
	aux, ok := rec.Tag(tag)
	if !ok {
		return "", false, nil
	}
	value, ok := aux.Value().(string)
	if !ok {
		return "", false, fmt.Errorf("tag %s is not a string", tag)
	}
	return value, true, nil
}

// mapping converts rec into a Mapping.  Reverse records are turned back into
// the orientation in which the read was sequenced.
func (h *Header) mapping(rec *hts.Record) (*alignment.Mapping, error) {
	read := &consensus.Read{Name: rec.Name}
	id, ok, err := stringTag(rec, readGroupTag)
	if err != nil {
		return nil, err
	}
	if ok {
		rg, ok := h.readGroup(id)
		if !ok {
			return nil, fmt.Errorf("undeclared read group %q", id)
		}
		read.Clone, read.Ligation = rg.Get(sampleTag), rg.Library()
	}
	name, ok, err := stringTag(rec, chemistryTag)
	if err != nil {
		return nil, err
	}
	if ok {
		chemistry, err := consensus.ParseChemistry(name)
		if err != nil {
			return nil, err
		}
		read.Chemistry = chemistry
	}

	forward := rec.Flags&hts.Reverse == 0
	var dna, quality []byte
	if rec.Seq.Length > 0 {
		dna = rec.Seq.Expand()
	}
	if hasQuality(rec.Qual) {
		quality = append([]byte(nil), rec.Qual...)
	}
	if !forward {
		reverseComplement(dna)
		reverse(quality)
	}

	length := len(dna)
	if length == 0 {
		length = len(quality)
	}
	if length == 0 {
		// Without SEQ or QUAL the query length can only come from the CIGAR.
		for _, op := range rec.Cigar {
			length += op.Len() * op.Type().Consumes().Query
		}
	}

	var segments []alignment.Segment
	var query, leftSoftClip, rightSoftClip int
	contigPos := rec.Pos + 1
	for i, op := range rec.Cigar {
		switch op.Type() {
		case hts.CigarMatch, hts.CigarEqual, hts.CigarMismatch:
			readStart := query + 1
			if !forward {
				readStart = length - query
			}
			segments = append(segments, alignment.Segment{ContigStart: contigPos, ReadStart: readStart, Length: op.Len()})
		case hts.CigarSoftClipped:
			if len(segments) == 0 {
				leftSoftClip += op.Len()
			} else if i == len(rec.Cigar)-1 || rec.Cigar[i+1].Type() == hts.CigarHardClipped {
				rightSoftClip += op.Len()
			}
		case hts.CigarBack:
			return nil, fmt.Errorf("unsupported CIGAR %v", hts.Cigar(rec.Cigar))
		}
		c := op.Type().Consumes()
		query += op.Len() * c.Query
		contigPos += op.Len() * c.Reference
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("CIGAR %q aligns no bases", hts.Cigar(rec.Cigar).String())
	}

	var clip *alignment.Clip
	if leftSoftClip > 0 || rightSoftClip > 0 {
		if forward {
			clip = &alignment.Clip{Left: leftSoftClip + 1, Right: length - rightSoftClip}
		} else {
			clip = &alignment.Clip{Left: rightSoftClip + 1, Right: length - leftSoftClip}
		}
	}
	return alignment.NewMapping(read, dna, quality, forward, segments, clip), nil
}

// hasQuality reports whether q holds quality values.  A QUAL of "*" is
// decoded as no values or as a run of 0xff.
func hasQuality(q []byte) bool {
	for _, v := range q {
		if v != 0xff {
			return true
		}
	}
	return false
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func reverseComplement(b []byte) {
	reverse(b)
	for i, c := range b {
		switch c {
		case 'A':
			b[i] = 'T'
		case 'C':
			b[i] = 'G'
		case 'G':
			b[i] = 'C'
		case 'T':
			b[i] = 'A'
		case 'a':
			b[i] = 't'
		case 'c':
			b[i] = 'g'
		case 'g':
			b[i] = 'c'
		case 't':
			b[i] = 'a'
		}
	}
}
