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
	"encoding/json"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/googlegenomics/consensus/consensus"
	"github.com/googlegenomics/consensus/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConsensus() *consensus.Consensus {
	return &consensus.Consensus{
		Start:   100,
		Finish:  105,
		DNA:     []byte("ACG*TN"),
		Quality: []byte{30, 40, 99, 12, 0, 0},
	}
}

var testDivergences = []consensus.Divergence{{
	Position:     102,
	DefaultBase:  'A',
	DefaultScore: 90,
	DefaultReads: 4,
	GroupName:    "bA1",
	GroupBase:    'T',
	GroupScore:   60,
	GroupReads:   2,
}}

func TestTag(t *testing.T) {
	assert.Equal(t, "SNP: T (Q=60) vs consensus A (Q=90 from 4 reads); strain=bA1", Tag(testDivergences[0]))
}

func TestWriteDivergences(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDivergences(&buf, "Contig7", testDivergences))
	assert.Equal(t, "Contig7\t102\tA (Q=90, N=4)\tbA1\tT (Q=60, N=2)\tSNP: T (Q=60) vs consensus A (Q=90 from 4 reads); strain=bA1\n", buf.String())
}

func TestConsensusRecord(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteConsensus(&buf, 7, testConsensus()))

	id, got, err := ReadConsensus(&buf)
	require.NoError(t, err)
	assert.Equal(t, 7, id)
	assert.Equal(t, testConsensus(), got)
}

func TestObjectSinkSources(t *testing.T) {
	dir, err := ioutil.TempDir("", "store")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	ctx := context.Background()
	client := storage.LocalClient{Root: dir}
	sink := &ObjectSink{Client: client, Bucket: "out", Prefix: "run1/"}
	for i, source := range []string{"a.sam", "b.sam", "lane/a.json"} {
		c := testConsensus()
		c.DNA[0] = "ACG"[i]
		require.NoError(t, sink.StoreConsensus(ctx, Key{Source: source, ContigID: 1}, c))
	}

	names, err := client.List(ctx, "out", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"run1/a/1.cns", "run1/b/1.cns", "run1/lane/a/1.cns"}, names)

	for i, name := range names {
		r, err := client.NewObjectHandle("out", name).NewRangeReader(ctx, 0, -1)
		require.NoError(t, err)
		_, got, err := ReadConsensus(r)
		r.Close()
		require.NoError(t, err)
		assert.Equal(t, "ACG"[i], got.DNA[0], "object %s", name)
	}
}

func TestKeyString(t *testing.T) {
	testCases := []struct {
		key  Key
		want string
	}{
		{Key{ContigID: 7}, "7"},
		{Key{Source: "run/a.sam", ContigID: 7}, "run/a.sam:7"},
	}
	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			if got := tc.key.String(); got != tc.want {
				t.Errorf("Wrong key: got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestReadConsensusErrors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteConsensus(&buf, 7, testConsensus()))
	valid := buf.Bytes()

	testCases := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"not compressed", []byte("CNS\x01")},
		{"truncated", valid[:len(valid)/2]},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ReadConsensus(bytes.NewReader(tc.input))
			assert.Error(t, err)
		})
	}
}

func TestObjectSink(t *testing.T) {
	dir, err := ioutil.TempDir("", "store")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	ctx := context.Background()
	client := storage.LocalClient{Root: dir}
	sink := &ObjectSink{Client: client, Bucket: "out", Prefix: "run1/"}
	require.NoError(t, sink.StoreConsensus(ctx, Key{ContigID: 7}, testConsensus()))
	require.NoError(t, sink.StoreDivergences(ctx, Key{ContigID: 7}, "Contig7", testDivergences))

	names, err := client.List(ctx, "out", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"run1/7.cns", "run1/7.snp.tsv"}, names)

	r, err := client.NewObjectHandle("out", sink.ConsensusObject(Key{ContigID: 7})).NewRangeReader(ctx, 0, -1)
	require.NoError(t, err)
	defer r.Close()
	id, got, err := ReadConsensus(r)
	require.NoError(t, err)
	assert.Equal(t, 7, id)
	assert.Equal(t, testConsensus(), got)
}

// flakyClient fails its first few writes.
type flakyClient struct {
	mu       sync.Mutex
	failures int
	writes   int
	objects  map[string]string
}

func (c *flakyClient) NewObjectHandle(bucket, object string) storage.ObjectHandle {
	return flakyHandle{c, object}
}

func (c *flakyClient) List(context.Context, string, string) ([]string, error) {
	return nil, nil
}

type flakyHandle struct {
	client *flakyClient
	object string
}

func (h flakyHandle) NewRangeReader(context.Context, int64, int64) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotExist
}

func (h flakyHandle) NewWriter(context.Context) (io.WriteCloser, error) {
	h.client.mu.Lock()
	defer h.client.mu.Unlock()
	h.client.writes++
	if h.client.writes <= h.client.failures {
		return nil, errors.New("service unavailable")
	}
	return &recordingWriter{handle: h}, nil
}

type recordingWriter struct {
	bytes.Buffer
	handle flakyHandle
}

func (w *recordingWriter) Close() error {
	w.handle.client.mu.Lock()
	defer w.handle.client.mu.Unlock()
	w.handle.client.objects[w.handle.object] = w.String()
	return nil
}

func TestObjectSinkRetries(t *testing.T) {
	testCases := []struct {
		name     string
		failures int
		attempts int
		writes   int
		ok       bool
	}{
		{"no failures", 0, 0, 1, true},
		{"recovers", 2, 0, 3, true},
		{"gives up", 3, 0, 3, false},
		{"single attempt", 1, 1, 1, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := &flakyClient{failures: tc.failures, objects: make(map[string]string)}
			sink := &ObjectSink{Client: client, Prefix: "p/", Attempts: tc.attempts}
			err := sink.StoreDivergences(context.Background(), Key{ContigID: 1}, "c", testDivergences)
			if tc.ok {
				assert.NoError(t, err)
				assert.True(t, strings.HasPrefix(client.objects["p/1.snp.tsv"], "c\t102\t"))
			} else {
				assert.Error(t, err)
			}
			assert.Equal(t, tc.writes, client.writes)
		})
	}
}

func TestObjectSinkCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &flakyClient{failures: 1, objects: make(map[string]string)}
	sink := &ObjectSink{Client: client}
	assert.Equal(t, context.Canceled, sink.StoreConsensus(ctx, Key{ContigID: 1}, testConsensus()))
}

func TestRowSink(t *testing.T) {
	var rows, divergences bytes.Buffer
	sink := &RowSink{Consensus: &rows, Divergences: &divergences}
	ctx := context.Background()
	key := Key{Source: "a.sam", ContigID: 7}
	require.NoError(t, sink.StoreConsensus(ctx, key, testConsensus()))
	require.NoError(t, sink.StoreDivergences(ctx, key, "Contig7", testDivergences))

	var row Row
	require.NoError(t, json.NewDecoder(&rows).Decode(&row))
	assert.Equal(t, "a.sam", row.Source)
	assert.Equal(t, 7, row.ContigID)
	assert.Equal(t, 6, row.Length)
	dna, quality, err := row.Decode()
	require.NoError(t, err)
	assert.Equal(t, "ACG*TN", string(dna))
	assert.Equal(t, testConsensus().Quality, quality)

	var d DivergenceRow
	require.NoError(t, json.NewDecoder(&divergences).Decode(&d))
	assert.Equal(t, DivergenceRow{Source: "a.sam", ContigID: 7, Contig: "Contig7", Position: 102, Group: "bA1", Tag: Tag(testDivergences[0])}, d)

	// Divergences are optional.
	assert.NoError(t, (&RowSink{Consensus: &rows}).StoreDivergences(ctx, key, "Contig7", testDivergences))
}

func TestRowDecodeErrors(t *testing.T) {
	row, err := NewRow(Key{ContigID: 1}, testConsensus())
	require.NoError(t, err)
	row.Length++
	_, _, err = row.Decode()
	assert.Error(t, err)

	row.Sequence = []byte("not zlib")
	_, _, err = row.Decode()
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, Discard.StoreConsensus(ctx, Key{}, testConsensus()))
	assert.NoError(t, Discard.StoreDivergences(ctx, Key{}, "c", testDivergences))
}
