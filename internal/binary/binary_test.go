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

package binary

import (
	"bytes"
	"testing"
)

func TestCheckMagic(t *testing.T) {
	testCases := []struct {
		want  []byte
		input []byte
		match bool
	}{
		{[]byte("CNS\x01"), []byte("CNS\x01"), true},
		{[]byte("CNS\x01"), []byte("CNS\x01EXTRA"), true},
		{[]byte("CNS\x01"), []byte("CNS\x02"), false},
		{[]byte("CNS\x01"), []byte("CNS"), false},
		{[]byte("CNS\x01"), []byte(""), false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.input), func(t *testing.T) {
			err := CheckMagic(bytes.NewReader(tc.input), tc.want)
			if err != nil && tc.match {
				t.Fatalf("CheckMagic returned unexpected error: %v", err)
			} else if err == nil && !tc.match {
				t.Fatalf("CheckMagic accepted mismatched input %v", tc.match)
			}
		})
	}
}

func TestBytes(t *testing.T) {
	var buf bytes.Buffer
	for _, b := range [][]byte{[]byte("ACGT"), {}, {0, 255}} {
		if err := WriteBytes(&buf, b); err != nil {
			t.Fatalf("WriteBytes failed: %v", err)
		}
	}
	for _, want := range [][]byte{[]byte("ACGT"), {}, {0, 255}} {
		got, err := ReadBytes(&buf)
		if err != nil {
			t.Fatalf("ReadBytes failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Wrong bytes: got %v, want %v", got, want)
		}
	}
	if _, err := ReadBytes(&buf); err == nil {
		t.Error("ReadBytes succeeded on empty input")
	}
}

func TestReadBytesInvalidLength(t *testing.T) {
	testCases := []struct {
		name  string
		input []byte
	}{
		{"negative", []byte{0xff, 0xff, 0xff, 0xff}},
		{"truncated", []byte{4, 0, 0, 0, 'A'}},
		{"short length", []byte{4, 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadBytes(bytes.NewReader(tc.input)); err == nil {
				t.Error("ReadBytes accepted invalid input")
			}
		})
	}
}
