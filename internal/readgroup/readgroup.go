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

// Package readgroup parses read group definitions of the form
// "clone=NAME", "ligation=NAME" or "readname=REGEXP".
package readgroup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/googlegenomics/consensus/consensus"
)

// Kinds of read group.
const (
	Clone    = "clone"
	Ligation = "ligation"
	ReadName = "readname"
)

// Group selects mappings by the identity of their read.
type Group struct {
	kind    string
	value   string
	pattern *regexp.Regexp
}

var _ consensus.ReadGroup = (*Group)(nil)

// Parse returns the group described by text.
func Parse(text string) (*Group, error) {
	i := strings.IndexByte(text, '=')
	if i < 0 {
		return nil, fmt.Errorf("invalid read group %q: expected kind=value", text)
	}
	kind, value := strings.ToLower(strings.TrimSpace(text[:i])), strings.TrimSpace(text[i+1:])
	if value == "" {
		return nil, fmt.Errorf("invalid read group %q: empty value", text)
	}

	g := &Group{kind: kind, value: value}
	switch kind {
	case Clone, Ligation:
	case ReadName:
		re, err := regexp.Compile(value)
		if err != nil {
			return nil, fmt.Errorf("invalid read name pattern %q: %v", value, err)
		}
		g.pattern = re
	default:
		return nil, fmt.Errorf("invalid read group %q: unknown kind %q", text, kind)
	}
	return g, nil
}

// ParseAll parses each group definition, preserving their order.
func ParseAll(texts []string) ([]consensus.ReadGroup, error) {
	groups := make([]consensus.ReadGroup, 0, len(texts))
	for _, text := range texts {
		g, err := Parse(text)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// Kind returns one of Clone, Ligation or ReadName.
func (g *Group) Kind() string { return g.kind }

// Name returns the value of the group, which is used as its display name.
func (g *Group) Name() string { return g.value }

func (g *Group) String() string { return g.kind + "=" + g.value }

// BelongsTo reports whether the read of m is a member of g.  Mappings with no
// read identity belong to no group.
func (g *Group) BelongsTo(m consensus.Mapping) bool {
	read := m.Read()
	if read == nil {
		return false
	}
	switch g.kind {
	case Clone:
		return read.Clone == g.value
	case Ligation:
		return read.Ligation == g.value
	case ReadName:
		return g.pattern.MatchString(read.Name)
	}
	return false
}
