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

package store

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"sync"

	"github.com/googlegenomics/consensus/consensus"
)

// Row is the stored form of a consensus sequence.  Sequence and Quality are
// zlib compressed.
type Row struct {
	Source   string `json:"source,omitempty"`
	ContigID int    `json:"contig_id"`
	Length   int    `json:"length"`
	Sequence []byte `json:"sequence"`
	Quality  []byte `json:"quality"`
}

// NewRow compresses c into a Row.
func NewRow(key Key, c *consensus.Consensus) (*Row, error) {
	sequence, err := compress(c.DNA)
	if err != nil {
		return nil, fmt.Errorf("compressing sequence: %v", err)
	}
	quality, err := compress(c.Quality)
	if err != nil {
		return nil, fmt.Errorf("compressing quality: %v", err)
	}
	return &Row{
		Source:   key.Source,
		ContigID: key.ContigID,
		Length:   c.Len(),
		Sequence: sequence,
		Quality:  quality,
	}, nil
}

// Decode returns the uncompressed sequence and quality of r.
func (r *Row) Decode() ([]byte, []byte, error) {
	dna, err := decompress(r.Sequence)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing sequence: %v", err)
	}
	quality, err := decompress(r.Quality)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing quality: %v", err)
	}
	if len(dna) != r.Length || len(quality) != r.Length {
		return nil, nil, fmt.Errorf("row length %d does not match %d bases and %d quality values", r.Length, len(dna), len(quality))
	}
	return dna, quality, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return ioutil.ReadAll(zr)
}

// DivergenceRow is the stored form of a divergence.
type DivergenceRow struct {
	Source   string `json:"source,omitempty"`
	ContigID int    `json:"contig_id"`
	Contig   string `json:"contig"`
	Position int    `json:"position"`
	Group    string `json:"group"`
	Tag      string `json:"tag"`
}

// RowSink writes rows as JSON lines.  Divergences is optional.
type RowSink struct {
	Consensus   io.Writer
	Divergences io.Writer

	mu sync.Mutex
}

// StoreConsensus implements Sink.
func (s *RowSink) StoreConsensus(ctx context.Context, key Key, c *consensus.Consensus) error {
	row, err := NewRow(key, c)
	if err != nil {
		return err
	}
	return s.encode(s.Consensus, row)
}

// StoreDivergences implements Sink.
func (s *RowSink) StoreDivergences(ctx context.Context, key Key, name string, divergences []consensus.Divergence) error {
	if s.Divergences == nil {
		return nil
	}
	for _, d := range divergences {
		row := &DivergenceRow{
			Source:   key.Source,
			ContigID: key.ContigID,
			Contig:   name,
			Position: d.Position,
			Group:    d.GroupName,
			Tag:      Tag(d),
		}
		if err := s.encode(s.Divergences, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *RowSink) encode(w io.Writer, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("writing row: %v", err)
	}
	return nil
}
