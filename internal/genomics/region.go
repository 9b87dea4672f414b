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

// Package genomics contains definitions related to Genomic data.
package genomics

import (
	"fmt"
	"strconv"

	"github.com/googlegenomics/consensus/consensus"
)

// WholeContig defines a Region that matches every consensus position.
var WholeContig = Region{}

// Region defines a region of a contig.
type Region struct {
	// Start and End specify the inclusive range of contig positions.  Zero
	// means the first or last position of the consensus respectively.
	Start, End int
}

func (region Region) String() string {
	return fmt.Sprintf("[start:%d, end:%d]", region.Start, region.End)
}

// ParseRegion parses optional start and end query values.
func ParseRegion(start, end string) (Region, error) {
	var region Region
	if start != "" {
		n, err := strconv.ParseUint(start, 10, 31)
		if err != nil {
			return Region{}, fmt.Errorf("parsing start: %v", err)
		}
		region.Start = int(n)
	}
	if end != "" {
		n, err := strconv.ParseUint(end, 10, 31)
		if err != nil {
			return Region{}, fmt.Errorf("parsing end: %v", err)
		}
		region.End = int(n)
	}
	if region.End > 0 && region.Start > region.End {
		return Region{}, fmt.Errorf("%s: start > end", region)
	}
	return region, nil
}

// Apply returns the part of c within region.
func (region Region) Apply(c *consensus.Consensus) (*consensus.Consensus, error) {
	if region == WholeContig {
		return c, nil
	}
	start, end := region.Start, region.End
	if start == 0 {
		start = c.Start
	}
	if end == 0 {
		end = c.Finish
	}
	return c.Slice(start, end)
}
