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

// Package store persists consensus sequences and divergences.
package store

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/googlegenomics/consensus/consensus"
)

// Key identifies a contig within a run.  Contig IDs are only unique within
// one source, so inputs read from several objects are told apart by Source.
type Key struct {
	Source   string
	ContigID int
}

func (k Key) String() string {
	if k.Source == "" {
		return strconv.Itoa(k.ContigID)
	}
	return fmt.Sprintf("%s:%d", k.Source, k.ContigID)
}

// Sink receives the results computed for each contig.  Implementations must
// be safe for concurrent use.
type Sink interface {
	StoreConsensus(ctx context.Context, key Key, c *consensus.Consensus) error
	StoreDivergences(ctx context.Context, key Key, name string, divergences []consensus.Divergence) error
}

type discard struct{}

// Discard is a Sink that drops everything it is given.
var Discard Sink = discard{}

func (discard) StoreConsensus(context.Context, Key, *consensus.Consensus) error {
	return nil
}

func (discard) StoreDivergences(context.Context, Key, string, []consensus.Divergence) error {
	return nil
}

// Tag returns the annotation recorded against a divergence.
func Tag(d consensus.Divergence) string {
	return fmt.Sprintf("SNP: %c (Q=%d) vs consensus %c (Q=%d from %d reads); strain=%s",
		d.GroupBase, d.GroupScore, d.DefaultBase, d.DefaultScore, d.DefaultReads, d.GroupName)
}

// WriteDivergences writes one tab separated line per divergence of the named
// contig.
func WriteDivergences(w io.Writer, name string, divergences []consensus.Divergence) error {
	for _, d := range divergences {
		if _, err := fmt.Fprintf(w, "%s\t%v\t%s\n", name, d, Tag(d)); err != nil {
			return fmt.Errorf("writing divergence at %d: %v", d.Position, err)
		}
	}
	return nil
}
