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
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/googlegenomics/consensus/consensus"
	"github.com/googlegenomics/consensus/internal/bgzf"
	"github.com/googlegenomics/consensus/internal/binary"
	"github.com/googlegenomics/consensus/internal/storage"
)

var consensusMagic = []byte("CNS\x01")

const (
	// DefaultAttempts is the number of times an object write is tried.
	DefaultAttempts = 3

	consensusSuffix  = ".cns"
	divergenceSuffix = ".snp.tsv"
)

// ObjectSink writes one object per contig into a bucket.  Consensus objects
// are BGZF compressed records readable with ReadConsensus; divergences are
// written as text.
type ObjectSink struct {
	Client storage.Client
	Bucket string
	Prefix string

	// Attempts defaults to DefaultAttempts.
	Attempts int
	// Backoff is the pause before the first retry; it doubles on each retry.
	Backoff time.Duration
}

// ConsensusObject returns the name of the object holding the consensus of a
// contig.  Contigs read from a source are written below a directory named
// after it.
func (s *ObjectSink) ConsensusObject(key Key) string {
	return s.object(key, consensusSuffix)
}

// DivergenceObject returns the name of the object holding the divergences of
// a contig.
func (s *ObjectSink) DivergenceObject(key Key) string {
	return s.object(key, divergenceSuffix)
}

func (s *ObjectSink) object(key Key, suffix string) string {
	if key.Source == "" {
		return fmt.Sprintf("%s%d%s", s.Prefix, key.ContigID, suffix)
	}
	dir := strings.TrimSuffix(key.Source, path.Ext(key.Source))
	return fmt.Sprintf("%s%s/%d%s", s.Prefix, dir, key.ContigID, suffix)
}

// StoreConsensus implements Sink.
func (s *ObjectSink) StoreConsensus(ctx context.Context, key Key, c *consensus.Consensus) error {
	var buf bytes.Buffer
	if err := WriteConsensus(&buf, key.ContigID, c); err != nil {
		return err
	}
	return s.put(ctx, s.ConsensusObject(key), buf.Bytes())
}

// StoreDivergences implements Sink.
func (s *ObjectSink) StoreDivergences(ctx context.Context, key Key, name string, divergences []consensus.Divergence) error {
	var buf bytes.Buffer
	if err := WriteDivergences(&buf, name, divergences); err != nil {
		return err
	}
	return s.put(ctx, s.DivergenceObject(key), buf.Bytes())
}

func (s *ObjectSink) put(ctx context.Context, object string, data []byte) error {
	attempts := s.Attempts
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	backoff := s.Backoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = s.write(ctx, object, data); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		log.Printf("Writing %s (attempt %d of %d): %v", object, attempt, attempts, err)
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("writing %s: %v", object, err)
}

func (s *ObjectSink) write(ctx context.Context, object string, data []byte) error {
	w, err := s.Client.NewObjectHandle(s.Bucket, object).NewWriter(ctx)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// WriteConsensus writes c as a BGZF compressed record.
func WriteConsensus(w io.Writer, contigID int, c *consensus.Consensus) error {
	bw := bgzf.NewWriter(w)
	if _, err := bw.Write(consensusMagic); err != nil {
		return fmt.Errorf("writing magic: %v", err)
	}
	header := []int32{int32(contigID), int32(c.Start), int32(c.Len())}
	if err := binary.Write(bw, header); err != nil {
		return fmt.Errorf("writing header: %v", err)
	}
	if err := binary.WriteBytes(bw, c.DNA); err != nil {
		return fmt.Errorf("writing sequence: %v", err)
	}
	if err := binary.WriteBytes(bw, c.Quality); err != nil {
		return fmt.Errorf("writing quality: %v", err)
	}
	return bw.Close()
}

// ReadConsensus reads a record written by WriteConsensus.  Only the sequence
// and its extent are stored, so the read counts of the result are zero.
func ReadConsensus(r io.Reader) (int, *consensus.Consensus, error) {
	br := bgzf.NewReader(r)
	if err := binary.CheckMagic(br, consensusMagic); err != nil {
		return 0, nil, err
	}
	var header [3]int32
	if err := binary.Read(br, &header); err != nil {
		return 0, nil, fmt.Errorf("reading header: %v", err)
	}
	dna, err := binary.ReadBytes(br)
	if err != nil {
		return 0, nil, fmt.Errorf("reading sequence: %v", err)
	}
	quality, err := binary.ReadBytes(br)
	if err != nil {
		return 0, nil, fmt.Errorf("reading quality: %v", err)
	}
	length := int(header[2])
	if len(dna) != length || len(quality) != length {
		return 0, nil, fmt.Errorf("record length %d does not match %d bases and %d quality values", length, len(dna), len(quality))
	}
	start := int(header[1])
	return int(header[0]), &consensus.Consensus{
		Start:   start,
		Finish:  start + length - 1,
		DNA:     dna,
		Quality: quality,
	}, nil
}
