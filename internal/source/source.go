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

// Package source iterates over the contigs held in storage.
package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/googlegenomics/consensus/internal/contig"
	"github.com/googlegenomics/consensus/internal/sam"
	"github.com/googlegenomics/consensus/internal/storage"
)

// Source yields contigs one at a time.  Next returns io.EOF once every
// contig has been returned.
type Source interface {
	Next(ctx context.Context) (*contig.Contig, error)
}

// Supported reports whether the object name has a format that Load can read.
func Supported(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".sam":
		return true
	}
	return false
}

// Load reads every contig held in a single object.  JSON objects hold one
// contig; SAM objects hold one contig per mapped reference.
func Load(ctx context.Context, handle storage.ObjectHandle, name string) ([]*contig.Contig, error) {
	r, err := handle.NewRangeReader(ctx, 0, -1)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Decode(r, name)
}

// Decode reads the contigs in r, which holds the content of the named
// object.
func Decode(r io.Reader, name string) ([]*contig.Contig, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		c, err := contig.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %v", name, err)
		}
		return []*contig.Contig{c}, nil
	case ".sam":
		_, contigs, err := sam.ReadContigs(r)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %v", name, err)
		}
		return contigs, nil
	}
	return nil, fmt.Errorf("unsupported object %s", name)
}

type storageSource struct {
	client  storage.Client
	bucket  string
	dir     string
	names   []string
	pending []*contig.Contig
}

// NewStorageSource returns a Source over every supported object in bucket
// whose name starts with prefix.  Objects are read lazily in name order.  The
// Source of each contig is the object name below the directory of prefix.
func NewStorageSource(ctx context.Context, client storage.Client, bucket, prefix string) (Source, error) {
	names, err := client.List(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	dir := prefix[:strings.LastIndex(prefix, "/")+1]
	s := &storageSource{client: client, bucket: bucket, dir: dir}
	for _, name := range names {
		if Supported(name) {
			s.names = append(s.names, name)
		}
	}
	return s, nil
}

func (s *storageSource) Next(ctx context.Context) (*contig.Contig, error) {
	for len(s.pending) == 0 {
		if len(s.names) == 0 {
			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := s.names[0]
		s.names = s.names[1:]
		contigs, err := Load(ctx, s.client.NewObjectHandle(s.bucket, name), name)
		if err != nil {
			return nil, err
		}
		for _, c := range contigs {
			c.Source = strings.TrimPrefix(name, s.dir)
		}
		s.pending = contigs
	}
	c := s.pending[0]
	s.pending = s.pending[1:]
	return c, nil
}

type sliceSource struct {
	contigs []*contig.Contig
}

// NewSliceSource returns a Source over contigs.
func NewSliceSource(contigs ...*contig.Contig) Source {
	return &sliceSource{contigs}
}

func (s *sliceSource) Next(ctx context.Context) (*contig.Contig, error) {
	if len(s.contigs) == 0 {
		return nil, io.EOF
	}
	c := s.contigs[0]
	s.contigs = s.contigs[1:]
	return c, nil
}
