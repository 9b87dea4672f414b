// Copyright 2018 Google Inc.
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

// Package binary provides support for operating on binary data.
package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxBytesLength bounds the length prefix accepted by ReadBytes.
const MaxBytesLength = 1 << 30

// CheckMagic checks the magic bytes from the provided reader.
func CheckMagic(r io.Reader, want []byte) error {
	got := make([]byte, len(want))
	if _, err := io.ReadFull(r, got); err != nil {
		return fmt.Errorf("reading magic: %v", err)
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("wrong magic %v (wanted %v)", got, want)
	}
	return nil
}

// Read reads a little endian value from r into v using binary.Read.
func Read(r io.Reader, v interface{}) error {
	return binary.Read(r, binary.LittleEndian, v)
}

// Write writes v to w in little endian order using binary.Write.
func Write(w io.Writer, v interface{}) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// WriteBytes writes b preceded by its length as a little endian int32.
func WriteBytes(w io.Writer, b []byte) error {
	if err := Write(w, int32(len(b))); err != nil {
		return fmt.Errorf("writing length: %v", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("writing %d bytes: %v", len(b), err)
	}
	return nil
}

// ReadBytes reads a byte slice written by WriteBytes.
func ReadBytes(r io.Reader) ([]byte, error) {
	var length int32
	if err := Read(r, &length); err != nil {
		return nil, fmt.Errorf("reading length: %v", err)
	}
	if length < 0 || length > MaxBytesLength {
		return nil, fmt.Errorf("invalid length %d", length)
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("reading %d bytes: %v", length, err)
	}
	return b, nil
}
