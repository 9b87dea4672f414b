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

package consensus

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMappings is returned when a sweep is requested for an empty
	// mapping list.
	ErrNoMappings = errors.New("no mappings")

	// ErrIncompleteAlignmentData matches (via errors.Is) any
	// *IncompleteDataError.
	ErrIncompleteAlignmentData = errors.New("incomplete alignment data")

	// ErrBounds matches (via errors.Is) any *BoundsError.
	ErrBounds = errors.New("bounds error")

	// ErrVoterUnderflow is the panic value used by Checked voters that are
	// queried without observations.
	ErrVoterUnderflow = errors.New("voter queried without observations")
)

// IncompleteDataError reports a mapping that lacks its base, quality or
// segment data.  It makes the whole contig unprocessable.
type IncompleteDataError struct {
	Mapping int // index of the offending mapping in the input
	Cause   error
}

func (err *IncompleteDataError) Error() string {
	return fmt.Sprintf("%v: mapping %d: %v", ErrIncompleteAlignmentData, err.Mapping, err.Cause)
}

func (err *IncompleteDataError) Unwrap() error {
	return err.Cause
}

func (err *IncompleteDataError) Is(target error) bool {
	return target == ErrIncompleteAlignmentData
}

// BoundsError reports an inconsistency between mapping extents and the sweep
// range.  It indicates corrupted input and aborts the sweep.
type BoundsError struct {
	Mapping  int // index of the offending mapping, or -1
	Position int
	Reason   string
}

func (err *BoundsError) Error() string {
	if err.Mapping < 0 {
		return fmt.Sprintf("%v: position %d: %s", ErrBounds, err.Position, err.Reason)
	}
	return fmt.Sprintf("%v: mapping %d at position %d: %s", ErrBounds, err.Mapping, err.Position, err.Reason)
}

func (err *BoundsError) Is(target error) bool {
	return target == ErrBounds
}
