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

// Package batch computes and stores the consensus of every contig produced
// by a source.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/googlegenomics/consensus/consensus"
	"github.com/googlegenomics/consensus/internal/analytics"
	"github.com/googlegenomics/consensus/internal/contig"
	"github.com/googlegenomics/consensus/internal/source"
	"github.com/googlegenomics/consensus/internal/store"
)

// Runner processes contigs on a pool of workers.
type Runner struct {
	Engine *consensus.Engine
	Sink   store.Sink

	// Workers defaults to 1.
	Workers int

	// Groups enables a differential pass over each contig whose divergences
	// are stored alongside the consensus.
	Groups []consensus.ReadGroup

	// Track, if set, receives an analytics hit for every contig.  It is called
	// from several goroutines.
	Track func(analytics.Hit)
}

// Summary counts the outcome of a run.
type Summary struct {
	Contigs     int
	Stored      int
	Incomplete  int
	Empty       int
	Bases       int
	Divergences int
	Elapsed     time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("%d contigs (%d stored, %d incomplete, %d empty), %d bases, %d divergences in %v",
		s.Contigs, s.Stored, s.Incomplete, s.Empty, s.Bases, s.Divergences, s.Elapsed)
}

type outcome struct {
	key         store.Key
	bases       int
	divergences int
	elapsed     time.Duration
	err         error
}

// Run reads every contig from src and stores its consensus in the sink.
// Contigs with incomplete alignment data or no mappings are logged and
// skipped.  Any other failure stops the run and is returned along with the
// summary of the contigs processed so far.  Two contigs with the same ID from
// the same source are an error, since their results would overwrite each
// other.
func (r *Runner) Run(ctx context.Context, src source.Source) (Summary, error) {
	started := time.Now()
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan *contig.Contig, workers*2)
	results := make(chan outcome, workers*2)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case c, ok := <-jobs:
					if !ok {
						return
					}
					select {
					case results <- r.process(ctx, c):
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	var (
		summary Summary
		cerr    error
		cwg     sync.WaitGroup
	)
	cwg.Add(1)
	go func() {
		defer cwg.Done()
		for o := range results {
			summary.Contigs++
			switch {
			case o.err == nil:
				summary.Stored++
				summary.Bases += o.bases
				summary.Divergences += o.divergences
			case errors.Is(o.err, consensus.ErrIncompleteAlignmentData):
				summary.Incomplete++
				log.Printf("CONTIG %v: data missing, operation abandoned: %v", o.key, o.err)
			case errors.Is(o.err, consensus.ErrNoMappings):
				summary.Empty++
				log.Printf("CONTIG %v: no mappings, skipped", o.key)
			default:
				if cerr == nil {
					cerr = fmt.Errorf("contig %v: %w", o.key, o.err)
					cancel()
				}
			}
		}
	}()

	var ferr error
	seen := make(map[store.Key]bool)
feed:
	for {
		c, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			ferr = err
			break
		}
		key := keyOf(c)
		if seen[key] {
			ferr = fmt.Errorf("duplicate contig %v", key)
			cancel()
			break
		}
		seen[key] = true
		select {
		case <-ctx.Done():
			break feed
		case jobs <- c:
		}
	}

	close(jobs)
	wg.Wait()
	close(results)
	cwg.Wait()

	summary.Elapsed = time.Since(started)
	switch {
	case cerr != nil:
		return summary, cerr
	case ferr != nil && ferr != context.Canceled:
		return summary, fmt.Errorf("reading contigs: %v", ferr)
	}
	return summary, ctx.Err()
}

func keyOf(c *contig.Contig) store.Key {
	return store.Key{Source: c.Source, ContigID: c.ID}
}

func (r *Runner) process(ctx context.Context, c *contig.Contig) outcome {
	started := time.Now()
	o := outcome{key: keyOf(c)}
	mappings := c.Intervals()

	result, err := r.Engine.Calculate(mappings)
	if err != nil {
		o.err = err
		return o
	}
	if err := r.Sink.StoreConsensus(ctx, o.key, result); err != nil {
		o.err = fmt.Errorf("storing consensus: %v", err)
		return o
	}
	o.bases = result.Len()

	if len(r.Groups) > 0 {
		diff, err := r.Engine.Differential(mappings, r.Groups)
		if err != nil {
			o.err = err
			return o
		}
		if err := r.Sink.StoreDivergences(ctx, o.key, c.Name, diff.Divergences); err != nil {
			o.err = fmt.Errorf("storing divergences: %v", err)
			return o
		}
		o.divergences = len(diff.Divergences)
	}

	o.elapsed = time.Since(started)
	log.Printf("CONTIG %v: %d bp, %d reads, %d divergences, max depth %d, %v",
		o.key, o.bases, len(mappings), o.divergences, result.MaxDepth, o.elapsed)
	if r.Track != nil {
		r.Track(analytics.Timing("Consensus", "Contig", c.Name, o.elapsed))
	}
	return o
}
