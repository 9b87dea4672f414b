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

package storage

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalClient is a Client backed by a directory.  Buckets are subdirectories
// of Root; the empty bucket name refers to Root itself.
type LocalClient struct {
	Root string
}

// NewObjectHandle implements Client.
func (c LocalClient) NewObjectHandle(bucket, object string) ObjectHandle {
	return localObjectHandle{c.path(bucket, object)}
}

func (c LocalClient) path(bucket, object string) string {
	return filepath.Join(c.Root, filepath.FromSlash(bucket), filepath.FromSlash(object))
}

// List implements Client.
func (c LocalClient) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	dir := c.path(bucket, "")
	var names []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if name := filepath.ToSlash(rel); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, ErrObjectNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %v", dir, err)
	}
	sort.Strings(names)
	return names, nil
}

type localObjectHandle struct {
	path string
}

type limitedFile struct {
	io.Reader
	*os.File
}

func (f limitedFile) Read(p []byte) (int, error) {
	return f.Reader.Read(p)
}

func (h localObjectHandle) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	f, err := os.Open(h.path)
	if os.IsNotExist(err) {
		return nil, ErrObjectNotExist
	}
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seeking to %d: %v", offset, err)
	}
	if length < 0 {
		return f, nil
	}
	return limitedFile{io.LimitReader(f, length), f}, nil
}

// NewWriter writes to a temporary file that replaces the object on Close.
// Every writer has its own temporary file, so concurrent writers of one
// object never interleave; the last to close wins.
func (h localObjectHandle) NewWriter(ctx context.Context) (io.WriteCloser, error) {
	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating directory: %v", err)
	}
	f, err := ioutil.TempFile(dir, filepath.Base(h.path)+".tmp*")
	if err != nil {
		return nil, err
	}
	if err := f.Chmod(0644); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &localWriter{f, h.path}, nil
}

type localWriter struct {
	*os.File
	target string
}

func (w *localWriter) Close() error {
	if err := w.File.Close(); err != nil {
		os.Remove(w.File.Name())
		return err
	}
	if err := os.Rename(w.File.Name(), w.target); err != nil {
		os.Remove(w.File.Name())
		return err
	}
	return nil
}
