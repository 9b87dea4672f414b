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

// This binary computes the consensus of every contig found under a local
// directory or GCS prefix and stores the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/profile"

	"github.com/googlegenomics/consensus/consensus"
	"github.com/googlegenomics/consensus/internal/analytics"
	"github.com/googlegenomics/consensus/internal/batch"
	"github.com/googlegenomics/consensus/internal/readgroup"
	"github.com/googlegenomics/consensus/internal/source"
	"github.com/googlegenomics/consensus/internal/storage"
	"github.com/googlegenomics/consensus/internal/store"
	"github.com/googlegenomics/consensus/vote"
)

const (
	consensusRows  = "consensus.jsonl"
	divergenceRows = "divergences.jsonl"
)

type groupList []string

func (g *groupList) String() string {
	return strings.Join(*g, ",")
}

func (g *groupList) Set(value string) error {
	*g = append(*g, value)
	return nil
}

var (
	input  = flag.String("input", "", "directory or gs://bucket/prefix holding .json and .sam contigs")
	output = flag.String("output", "", "directory or gs://bucket/prefix receiving the results")
	format = flag.String("format", "object", "output format: object, rows or none")

	algorithm           = flag.String("algorithm", vote.DefaultAlgorithm, "consensus algorithm")
	maxNormalReadLength = flag.Int("maxnormalreadlength", consensus.DefaultMaxNormalReadLength, "reads longer than this are handled as oversized")
	workers             = flag.Int("workers", 4, "number of contigs processed concurrently")
	exclusive           = flag.Bool("exclusive", false, "exclude grouped reads from the default voter")

	profileMode = flag.String("profile", "", "write a cpu or mem profile")
	trackUsage  = flag.Bool("track_usage", false, "anonymous usage tracking")

	groups groupList
)

func main() {
	flag.Var(&groups, "group", "read group as kind=value (clone, ligation or readname); may be repeated")
	flag.Parse()

	if *input == "" {
		log.Fatalf("You must specify -input.")
	}
	if *output == "" && *format != "none" {
		log.Fatalf("You must specify -output unless -format=none.")
	}

	switch *profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.NoShutdownHook).Stop()
	default:
		log.Fatalf("Unknown profile mode %q", *profileMode)
	}

	runID := uuid.New().String()
	log.SetPrefix(fmt.Sprintf("[%s] ", runID[:8]))

	factory, err := vote.Lookup(*algorithm)
	if err != nil {
		log.Fatalf("Failed to select algorithm: %v", err)
	}
	readGroups, err := readgroup.ParseAll(groups)
	if err != nil {
		log.Fatalf("Failed to parse read groups: %v", err)
	}

	ctx := context.Background()
	inputClient, bucket, prefix, err := open(*input)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	src, err := source.NewStorageSource(ctx, inputClient, bucket, prefix)
	if err != nil {
		log.Fatalf("Failed to list contigs: %v", err)
	}

	sink, closeSink, err := newSink(ctx)
	if err != nil {
		log.Fatalf("Failed to open output: %v", err)
	}

	runner := &batch.Runner{
		Engine: consensus.NewEngine(func() consensus.Voter { return consensus.Checked(factory()) }, consensus.Config{
			MaxNormalReadLength: *maxNormalReadLength,
			ExclusiveGroups:     *exclusive,
		}),
		Sink:    sink,
		Workers: *workers,
		Groups:  readGroups,
	}

	var collected func() []analytics.Hit
	if *trackUsage {
		log.Printf("Enabling anonymous usage tracking")
		ctx, collected = analytics.WithTracking(ctx)
		runner.Track = analytics.TrackerFromContext(ctx)
	}

	log.Printf("Computing consensus of %s with %s (%d workers)", *input, *algorithm, *workers)
	summary, err := runner.Run(ctx, src)
	if cerr := closeSink(); cerr != nil && err == nil {
		err = fmt.Errorf("closing output: %v", cerr)
	}

	if collected != nil {
		client := analytics.NewClient("UA-103022118-1", runID)
		hits := collected()
		hits = append(hits, analytics.Timing("Batch", "Run", *algorithm, summary.Elapsed))
		if err := client.Send(hits); err != nil {
			log.Printf("Failed to send %d hits to analytics: %v", len(hits), err)
		}
	}

	log.Printf("Processed %v", summary)
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}
}

// open returns the client, bucket and prefix addressing location.
func open(location string) (storage.Client, string, string, error) {
	if bucket, prefix, ok := storage.ParseURL(location); ok {
		client, _, err := storage.NewDefaultClient(nil)
		if err != nil {
			return nil, "", "", err
		}
		return client, bucket, prefix, nil
	}
	return storage.LocalClient{Root: location}, "", "", nil
}

// newSink returns the sink selected by -format and a function that flushes
// it once the run completes.
func newSink(ctx context.Context) (store.Sink, func() error, error) {
	none := func() error { return nil }
	if *format == "none" {
		return store.Discard, none, nil
	}

	client, bucket, prefix, err := open(*output)
	if err != nil {
		return nil, nil, err
	}

	switch *format {
	case "object":
		return &store.ObjectSink{
			Client:  client,
			Bucket:  bucket,
			Prefix:  prefix,
			Backoff: time.Second,
		}, none, nil
	case "rows":
		consensusWriter, err := client.NewObjectHandle(bucket, prefix+consensusRows).NewWriter(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("creating %s: %v", consensusRows, err)
		}
		divergenceWriter, err := client.NewObjectHandle(bucket, prefix+divergenceRows).NewWriter(ctx)
		if err != nil {
			consensusWriter.Close()
			return nil, nil, fmt.Errorf("creating %s: %v", divergenceRows, err)
		}
		return &store.RowSink{Consensus: consensusWriter, Divergences: divergenceWriter}, func() error {
			return closeAll(consensusWriter, divergenceWriter)
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown format %q", *format)
}

func closeAll(closers ...io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
