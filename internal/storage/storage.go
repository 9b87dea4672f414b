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

// Package storage provides access to the objects that hold contig data and
// receive consensus output, either in Google Cloud Storage or in a local
// directory.
package storage

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
)

var (
	// ErrObjectNotExist is returned by every Client when an object is missing.
	ErrObjectNotExist = storage.ErrObjectNotExist

	// ErrMissingOrInvalidToken is returned when a request does not carry a
	// usable bearer token.
	ErrMissingOrInvalidToken = errors.New("missing or invalid bearer token")
)

// Client is an interface to the storage engine.
type Client interface {
	// NewObjectHandle returns a handle to a specified object in
	// the storage engine.
	NewObjectHandle(bucket, object string) ObjectHandle

	// List returns the names of the objects in bucket that start with
	// prefix, in lexical order.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// ObjectHandle is an interface to the actual storage engine in use.
type ObjectHandle interface {
	// NewRangeReader returns a reader that reads from a specified
	// range. Length of -1 means to capture everything until the
	// end.
	NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error)

	// NewWriter returns a writer that replaces the object contents.  The
	// object is only guaranteed to be complete once Close returns nil.
	NewWriter(ctx context.Context) (io.WriteCloser, error)
}
