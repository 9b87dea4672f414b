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

// Package consensus computes the consensus sequence of a contig from the
// reads aligned to it.
//
// The engine sweeps every contig position from left to right, keeping a
// window over the reads sorted by their contig start so that each position
// only considers the reads that cover it.  Reads longer than a configurable
// threshold are considered at every position instead of being windowed.  The
// observations at each position are handed to a Voter, which owns the
// statistics used to call the best base.
package consensus

import "fmt"

const (
	// DefaultMaxNormalReadLength is the read length above which a read is
	// treated as oversized.
	DefaultMaxNormalReadLength = 8000

	// DefaultMaxContigLength bounds the number of positions in one
	// consensus.
	DefaultMaxContigLength = 1 << 28

	// NoCallBase is written at positions where no read contributed an
	// observation.
	NoCallBase = 'N'

	maxScore = 255
)

// Config controls an Engine.
type Config struct {
	// MaxNormalReadLength is the longest read that is handled by the sliding
	// window.  Zero selects DefaultMaxNormalReadLength.
	MaxNormalReadLength int

	// MaxContigLength is the longest consensus that is computed.  Mappings
	// spanning more positions are rejected with a *BoundsError.  Zero
	// selects DefaultMaxContigLength.
	MaxContigLength int

	// ExclusiveGroups makes the differential pass feed the default voter
	// only with reads that belong to no group.  Otherwise the default voter
	// sees every read.
	ExclusiveGroups bool
}

// Engine computes consensus sequences.  An Engine holds no per-contig state
// and may be used by concurrent goroutines: every call obtains its own voters
// from the factory.
type Engine struct {
	newVoter VoterFactory
	config   Config
}

// NewEngine returns an Engine that calls bases with voters from newVoter.
func NewEngine(newVoter VoterFactory, config Config) *Engine {
	return &Engine{newVoter, config.withDefaults()}
}

func (c Config) withDefaults() Config {
	if c.MaxNormalReadLength <= 0 {
		c.MaxNormalReadLength = DefaultMaxNormalReadLength
	}
	if c.MaxContigLength <= 0 {
		c.MaxContigLength = DefaultMaxContigLength
	}
	return c
}

// Config returns the effective configuration of the engine.
func (e *Engine) Config() Config {
	return e.config
}

// Consensus holds the consensus of a contig between Start and Finish
// (inclusive).  DNA[i] and Quality[i] describe position Start+i.
type Consensus struct {
	Start, Finish int
	DNA           []byte
	Quality       []byte

	// MaxDepth is the largest number of reads covering a single position.
	MaxDepth int

	NormalReads    int
	OversizedReads int
}

func newConsensus(start, finish int) *Consensus {
	n := 1 + finish - start
	return &Consensus{
		Start:   start,
		Finish:  finish,
		DNA:     make([]byte, n),
		Quality: make([]byte, n),
	}
}

// Len returns the number of positions in c.
func (c *Consensus) Len() int {
	return len(c.DNA)
}

// Slice returns the part of c between start and finish (inclusive).  The
// returned value shares storage with c.
func (c *Consensus) Slice(start, finish int) (*Consensus, error) {
	if start < c.Start || finish > c.Finish || start > finish {
		return nil, fmt.Errorf("range [%d, %d] is not within [%d, %d]", start, finish, c.Start, c.Finish)
	}
	i, j := start-c.Start, finish-c.Start+1
	return &Consensus{
		Start:          start,
		Finish:         finish,
		DNA:            c.DNA[i:j],
		Quality:        c.Quality[i:j],
		MaxDepth:       c.MaxDepth,
		NormalReads:    c.NormalReads,
		OversizedReads: c.OversizedReads,
	}, nil
}

// set stores the call of v for cpos.
func (c *Consensus) set(cpos int, v Voter) error {
	i := cpos - c.Start
	if i < 0 || i >= len(c.DNA) {
		return &BoundsError{
			Mapping:  -1,
			Position: cpos,
			Reason:   fmt.Sprintf("outside consensus range [%d, %d]", c.Start, c.Finish),
		}
	}
	if v.ReadCount() == 0 {
		c.DNA[i], c.Quality[i] = NoCallBase, 0
		return nil
	}
	c.DNA[i], c.Quality[i] = v.BestBase(), clampScore(v.BestScore())
	return nil
}

func clampScore(score int) byte {
	switch {
	case score < 0:
		return 0
	case score > maxScore:
		return maxScore
	}
	return byte(score)
}

// Calculate returns the consensus of the contig made up of mappings.
//
// If any mapping is missing its data, Calculate returns an error matching
// ErrIncompleteAlignmentData and no partial result.  Inconsistent mapping
// extents yield an error matching ErrBounds.
func (e *Engine) Calculate(mappings []Mapping) (*Consensus, error) {
	s, err := newSweep(mappings, e.config)
	if err != nil {
		return nil, err
	}

	voter := e.newVoter()
	result := newConsensus(s.start, s.finish)
	err = s.run(voter, nil, false, func(cpos int) error {
		return result.set(cpos, voter)
	})
	if err != nil {
		return nil, err
	}

	result.MaxDepth = s.maxDepth
	result.NormalReads = len(s.normal)
	result.OversizedReads = len(s.oversized)
	return result, nil
}
